package parser

import (
	"encoding/binary"
	"strings"
	"unicode/utf8"
)

func (r *dnsReader) readUint16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, ErrBufferTooShort
	}
	val := binary.BigEndian.Uint16(r.data[r.pos : r.pos+2])
	r.pos += 2
	return val, nil
}

func (r *dnsReader) readUint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, ErrBufferTooShort
	}
	val := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return val, nil
}

func (r *dnsReader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, ErrBufferTooShort
	}
	val := r.data[r.pos : r.pos+n]
	r.pos += n
	return val, nil
}

func (r *dnsReader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrBufferTooShort
	}
	val := r.data[r.pos]
	r.pos++
	return val, nil
}

// readName decodes length-prefixed labels up to and including the zero
// terminator. Label bytes that are not valid UTF-8 are replaced rather than
// rejected. Compression pointers are not followed: a length byte with either
// high bit set fails with the invalid kind supplied by the caller.
func (r *dnsReader) readName(invalid DecodeError) (string, error) {
	var name strings.Builder
	for {
		lead, err := r.readByte()
		if err != nil {
			return "", err
		}
		if lead == 0 {
			break
		}
		if lead&LabelTypeMask != 0 {
			return "", invalid
		}
		label, err := r.readBytes(int(lead))
		if err != nil {
			return "", err
		}
		writeLossy(&name, label)
		name.WriteByte('.')
	}
	return strings.TrimSuffix(name.String(), "."), nil
}

// writeLossy appends label to b, replacing each byte that does not start a
// valid UTF-8 sequence with U+FFFD.
func writeLossy(b *strings.Builder, label []byte) {
	for len(label) > 0 {
		r, size := utf8.DecodeRune(label)
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.Write(label[:size])
		}
		label = label[size:]
	}
}

func parseFlags(v uint16) Flags {
	return Flags{
		QR:     v&QRMask != 0,
		Opcode: uint8((v & OpcodeMask) >> 11),
		AA:     v&AAMask != 0,
		TC:     v&TCMask != 0,
		RD:     v&RDMask != 0,
		RA:     v&RAMask != 0,
		Z:      uint8((v & ZMask) >> 4),
		RCode:  uint8(v & RCodeMask),
	}
}

func (f Flags) pack() uint16 {
	var v uint16
	if f.QR {
		v |= QRMask
	}
	v |= (uint16(f.Opcode) << 11) & OpcodeMask
	if f.AA {
		v |= AAMask
	}
	if f.TC {
		v |= TCMask
	}
	if f.RD {
		v |= RDMask
	}
	if f.RA {
		v |= RAMask
	}
	v |= (uint16(f.Z) << 4) & ZMask
	v |= uint16(f.RCode) & RCodeMask
	return v
}

func (r *dnsReader) parseDNSHeader() (Header, error) {
	if len(r.data)-r.pos < HeaderSize {
		return Header{}, ErrBufferTooShort
	}
	h := Header{}
	// Length is checked above; none of these reads can fail.
	h.ID, _ = r.readUint16()
	flags, _ := r.readUint16()
	h.Flags = parseFlags(flags)
	h.QDCount, _ = r.readUint16()
	h.ANCount, _ = r.readUint16()
	h.NSCount, _ = r.readUint16()
	h.ARCount, _ = r.readUint16()
	return h, nil
}

func (r *dnsReader) parseDNSQuestion() (Question, error) {
	q := Question{}
	var err error
	if q.Name, err = r.readName(ErrInvalidQuestion); err != nil {
		return Question{}, err
	}
	t, err := r.readUint16()
	if err != nil {
		return Question{}, err
	}
	q.Type = RecordType(t)
	c, err := r.readUint16()
	if err != nil {
		return Question{}, err
	}
	q.Class = RecordClass(c)
	return q, nil
}

func (r *dnsReader) parseDNSResourceRecord() (ResourceRecord, error) {
	rr := ResourceRecord{}
	var err error
	if rr.Name, err = r.readName(ErrInvalidResourceRecord); err != nil {
		return ResourceRecord{}, err
	}
	t, err := r.readUint16()
	if err != nil {
		return ResourceRecord{}, err
	}
	rr.Type = RecordType(t)
	c, err := r.readUint16()
	if err != nil {
		return ResourceRecord{}, err
	}
	rr.Class = RecordClass(c)
	if rr.TTL, err = r.readUint32(); err != nil {
		return ResourceRecord{}, err
	}
	if rr.RDLength, err = r.readUint16(); err != nil {
		return ResourceRecord{}, err
	}
	data, err := r.readBytes(int(rr.RDLength))
	if err != nil {
		return ResourceRecord{}, err
	}
	rr.Data = append([]byte(nil), data...)
	return rr, nil
}

// ParseHeader decodes the fixed 12-byte header at the start of buf.
func ParseHeader(buf []byte) (Header, error) {
	r := dnsReader{data: buf}
	return r.parseDNSHeader()
}

// ParseQuestion decodes one question entry starting at offset and returns it
// together with the number of bytes it occupies.
func ParseQuestion(buf []byte, offset int) (Question, int, error) {
	if offset < 0 || offset >= len(buf) {
		return Question{}, 0, ErrBufferTooShort
	}
	r := dnsReader{data: buf, pos: offset}
	q, err := r.parseDNSQuestion()
	if err != nil {
		return Question{}, 0, err
	}
	return q, r.pos - offset, nil
}

// ParseResourceRecord decodes one resource record starting at offset and
// returns it together with the number of bytes it occupies.
func ParseResourceRecord(buf []byte, offset int) (ResourceRecord, int, error) {
	if offset < 0 || offset >= len(buf) {
		return ResourceRecord{}, 0, ErrBufferTooShort
	}
	r := dnsReader{data: buf, pos: offset}
	rr, err := r.parseDNSResourceRecord()
	if err != nil {
		return ResourceRecord{}, 0, err
	}
	return rr, r.pos - offset, nil
}

// ParseDNSMessage decodes the header and question section of a datagram. No
// partial message is returned on failure.
func ParseDNSMessage(buf []byte) (Message, error) {
	m := Message{}
	var err error
	if m.Header, err = ParseHeader(buf); err != nil {
		return Message{}, ErrInvalidHeader
	}
	m.Questions = make([]Question, 0, min(int(m.Header.QDCount), (len(buf)-HeaderSize)/5))
	offset := HeaderSize
	for i := 0; i < int(m.Header.QDCount); i++ {
		q, n, err := ParseQuestion(buf, offset)
		if err != nil {
			return Message{}, err
		}
		m.Questions = append(m.Questions, q)
		offset += n
	}
	return m, nil
}
