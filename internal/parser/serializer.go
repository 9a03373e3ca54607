package parser

import (
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"strings"
)

var (
	errLabelTooLong = errors.New("parser: label longer than 63 bytes")
	errEmptyLabel   = errors.New("parser: empty label")
)

func (s *dnsSerializer) writeUint16(v uint16) {
	s.data = binary.BigEndian.AppendUint16(s.data, v)
}

func (s *dnsSerializer) writeByte(v byte) {
	s.data = append(s.data, v)
}

func (s *dnsSerializer) writeBytes(v []byte) {
	s.data = append(s.data, v...)
}

// writeName encodes name as uncompressed labels. A trailing dot is accepted,
// and an empty name or "." encodes the root.
func (s *dnsSerializer) writeName(name string) error {
	name = strings.TrimSuffix(name, ".")
	if name != "" {
		for _, label := range strings.Split(name, ".") {
			if label == "" {
				return errEmptyLabel
			}
			if len(label) > 63 {
				return errLabelTooLong
			}
			s.writeByte(byte(len(label)))
			s.writeBytes([]byte(label))
		}
	}
	s.writeByte(0)
	return nil
}

func (s *dnsSerializer) serializeDNSHeader(h Header) {
	s.writeUint16(h.ID)
	s.writeUint16(h.Flags.pack())
	s.writeUint16(h.QDCount)
	s.writeUint16(h.ANCount)
	s.writeUint16(h.NSCount)
	s.writeUint16(h.ARCount)
}

func (s *dnsSerializer) serializeDNSQuestion(q Question) error {
	if err := s.writeName(q.Name); err != nil {
		return err
	}
	s.writeUint16(uint16(q.Type))
	s.writeUint16(uint16(q.Class))
	return nil
}

// AppendHeader appends the wire form of h to buf.
func AppendHeader(buf []byte, h Header) []byte {
	s := dnsSerializer{data: buf}
	s.serializeDNSHeader(h)
	return s.data
}

// AppendQuestion appends the wire form of q to buf.
func AppendQuestion(buf []byte, q Question) ([]byte, error) {
	s := dnsSerializer{data: buf}
	if err := s.serializeDNSQuestion(q); err != nil {
		return buf, err
	}
	return s.data, nil
}

// SerializeDNSMessage encodes the header and questions of m. QDCount is taken
// from the header as given.
func SerializeDNSMessage(m Message) ([]byte, error) {
	buf := AppendHeader(make([]byte, 0, MaxDatagramSize), m.Header)
	for _, q := range m.Questions {
		var err error
		if buf, err = AppendQuestion(buf, q); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func GenerateID() uint16 {
	return uint16(rand.N(1 << 16))
}

// CreateQuery builds a standard recursive query for a single question.
func CreateQuery(id uint16, domain string, qtype RecordType, qclass RecordClass) ([]byte, error) {
	return SerializeDNSMessage(Message{
		Header: Header{
			ID:      id,
			Flags:   Flags{RD: true},
			QDCount: 1,
		},
		Questions: []Question{
			{
				Name:  domain,
				Type:  qtype,
				Class: qclass,
			},
		},
	})
}
