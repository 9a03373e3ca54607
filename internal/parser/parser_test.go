package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	buf := []byte{
		0x12, 0x34,
		0x81, 0x80,
		0x00, 0x01, 0x00, 0x02,
		0x00, 0x03, 0x00, 0x04,
	}

	h, err := ParseHeader(buf)
	require.NoError(t, err)

	assert.Equal(t, uint16(0x1234), h.ID)
	assert.Equal(t, Flags{QR: true, RD: true, RA: true}, h.Flags)
	assert.Equal(t, uint16(1), h.QDCount)
	assert.Equal(t, uint16(2), h.ANCount)
	assert.Equal(t, uint16(3), h.NSCount)
	assert.Equal(t, uint16(4), h.ARCount)

	again, err := ParseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, again)
}

func TestParseHeaderFlagBits(t *testing.T) {
	tests := []struct {
		name  string
		flags [2]byte
		want  Flags
	}{
		{
			name:  "standard query",
			flags: [2]byte{0x01, 0x00},
			want:  Flags{RD: true},
		},
		{
			name:  "all single bits",
			flags: [2]byte{0x87, 0x80},
			want:  Flags{QR: true, AA: true, TC: true, RD: true, RA: true},
		},
		{
			name:  "opcode status",
			flags: [2]byte{0x10, 0x00},
			want:  Flags{Opcode: 2},
		},
		{
			name:  "reserved z is carried",
			flags: [2]byte{0x00, 0x70},
			want:  Flags{Z: 7},
		},
		{
			name:  "nxdomain rcode",
			flags: [2]byte{0x81, 0x83},
			want:  Flags{QR: true, RD: true, RA: true, RCode: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, HeaderSize)
			buf[2], buf[3] = tt.flags[0], tt.flags[1]
			h, err := ParseHeader(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.Flags)
			assert.Equal(t, uint16(tt.flags[0])<<8|uint16(tt.flags[1]), h.Flags.pack())
		})
	}
}

func TestParseHeaderShortBuffer(t *testing.T) {
	for n := 0; n < HeaderSize; n++ {
		_, err := ParseHeader(make([]byte, n))
		assert.ErrorIs(t, err, ErrBufferTooShort, "length %d", n)
	}
}

func TestReadName(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		expectName   string
		expectLength int
		expectError  error
	}{
		{
			name:         "example.com",
			data:         []byte{7, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 3, 'c', 'o', 'm', 0},
			expectName:   "example.com",
			expectLength: 13,
		},
		{
			name:         "root",
			data:         []byte{0},
			expectName:   "",
			expectLength: 1,
		},
		{
			name:         "trailing bytes are left alone",
			data:         []byte{1, 'a', 0, 0xff, 0xff},
			expectName:   "a",
			expectLength: 3,
		},
		{
			name:        "compression pointer",
			data:        []byte{0xc0, 0x0c},
			expectError: ErrInvalidQuestion,
		},
		{
			name:        "reserved label type",
			data:        []byte{0x40, 'a', 0},
			expectError: ErrInvalidQuestion,
		},
		{
			name:        "unterminated",
			data:        []byte{3, 'c', 'o', 'm'},
			expectError: ErrBufferTooShort,
		},
		{
			name:        "label overruns buffer",
			data:        []byte{9, 'c', 'o', 'm'},
			expectError: ErrBufferTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := dnsReader{data: tt.data}
			name, err := r.readName(ErrInvalidQuestion)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectName, name)
			assert.Equal(t, tt.expectLength, r.pos)
		})
	}
}

func TestReadNameReplacesInvalidUTF8(t *testing.T) {
	r := dnsReader{data: []byte{3, 'a', 0xff, 'b', 2, 'i', 'o', 0}}
	name, err := r.readName(ErrInvalidQuestion)
	require.NoError(t, err)
	assert.Equal(t, "a\uFFFDb.io", name)
}

func TestReadNameReplacesEachInvalidByte(t *testing.T) {
	tests := []struct {
		name  string
		label []byte
		want  string
	}{
		{"two invalid bytes", []byte{'a', 0xff, 0xfe}, "a\uFFFD\uFFFD"},
		{"valid multibyte kept", []byte{0xc3, 0xa9, 0xff}, "\u00e9\uFFFD"},
		{"lone continuation bytes", []byte{0x80, 0x80, 'z'}, "\uFFFD\uFFFDz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte{byte(len(tt.label))}, tt.label...)
			r := dnsReader{data: append(data, 0)}
			got, err := r.readName(ErrInvalidQuestion)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQuestion(t *testing.T) {
	buf := []byte{
		0x01, 'a', 0x02, 'i', 'o', 0x00,
		0x00, 0x01,
		0x00, 0x01,
	}

	q, n, err := ParseQuestion(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, Question{Name: "a.io", Type: RTA, Class: RCIN}, q)
	assert.Equal(t, len(buf), n)
	assert.True(t, q.Type.Known())
	assert.True(t, q.Class.Known())
}

func TestParseQuestionUnknownCodes(t *testing.T) {
	buf := []byte{
		0x01, 'a', 0x00,
		0xff, 0xfe,
		0xff, 0xfe,
	}

	q, _, err := ParseQuestion(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, RecordType(0xfffe), q.Type)
	assert.Equal(t, RecordClass(0xfffe), q.Class)
	assert.False(t, q.Type.Known())
	assert.False(t, q.Class.Known())
	assert.Equal(t, "UNKNOWN(65534)", q.Type.String())
	assert.Equal(t, "UNKNOWN(65534)", q.Class.String())
}

func TestParseQuestionTruncated(t *testing.T) {
	full := []byte{0x01, 'a', 0x00, 0x00, 0x01, 0x00, 0x01}
	for n := 0; n < len(full); n++ {
		_, _, err := ParseQuestion(full[:n], 0)
		assert.ErrorIs(t, err, ErrBufferTooShort, "length %d", n)
	}
}

func TestParseResourceRecord(t *testing.T) {
	buf := []byte{
		0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 0x03, 'c', 'o', 'm', 0x00,
		0x00, 0x01,
		0x00, 0x01,
		0x00, 0x00, 0x0e, 0x10,
		0x00, 0x04,
		93, 184, 216, 34,
		0xaa, // next record
	}

	rr, n, err := ParseResourceRecord(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "example.com", rr.Name)
	assert.Equal(t, RTA, rr.Type)
	assert.Equal(t, RCIN, rr.Class)
	assert.Equal(t, uint32(3600), rr.TTL)
	assert.Equal(t, uint16(4), rr.RDLength)
	assert.Equal(t, []byte{93, 184, 216, 34}, rr.Data)
	assert.Equal(t, len(buf)-1, n)

	// Data is a private copy.
	buf[len(buf)-2] = 0
	assert.Equal(t, byte(34), rr.Data[3])
}

func TestParseResourceRecordErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectError error
	}{
		{
			name:        "pointer name",
			data:        []byte{0xc0, 0x0c, 0x00, 0x01, 0x00, 0x01, 0, 0, 0, 1, 0, 0},
			expectError: ErrInvalidResourceRecord,
		},
		{
			name:        "missing ttl",
			data:        []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00},
			expectError: ErrBufferTooShort,
		},
		{
			name:        "data shorter than rdlength",
			data:        []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0, 0, 0, 1, 0x00, 0x04, 1, 2},
			expectError: ErrBufferTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseResourceRecord(tt.data, 0)
			assert.ErrorIs(t, err, tt.expectError)
		})
	}
}

func TestParseResourceRecordEmptyData(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x29, 0x10, 0x00, 0, 0, 0, 0, 0x00, 0x00}
	rr, n, err := ParseResourceRecord(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, RTOPT, rr.Type)
	assert.Equal(t, RecordClass(4096), rr.Class)
	assert.Empty(t, rr.Data)
	assert.Equal(t, len(buf), n)
}

func TestParseDNSMessageQuery(t *testing.T) {
	tests := []struct {
		name        string
		query       []byte
		expectError error
		expectQName string
		expectQType RecordType
	}{
		{
			name: "valid A query for example.com",
			query: []byte{
				0x12, 0x34,
				0x01, 0x00,
				0x00, 0x01, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e',
				0x03, 'c', 'o', 'm',
				0x00,
				0x00, 0x01,
				0x00, 0x01,
			},
			expectQName: "example.com",
			expectQType: RTA,
		},
		{
			name: "malformed QName (unterminated)",
			query: []byte{
				0x12, 0x34,
				0x01, 0x00,
				0x00, 0x01, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e', // no null terminator
				0x00, 0x01,
				0x00, 0x01,
			},
			expectError: ErrBufferTooShort,
		},
		{
			name: "valid AAAA query for test.local",
			query: []byte{
				0xab, 0xcd,
				0x01, 0x00,
				0x00, 0x01, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x04, 't', 'e', 's', 't',
				0x05, 'l', 'o', 'c', 'a', 'l',
				0x00,
				0x00, 0x1c, // Type AAAA (28)
				0x00, 0x01,
			},
			expectQName: "test.local",
			expectQType: RTAAAA,
		},
		{
			name:        "short header",
			query:       []byte{0x12, 0x34, 0x01, 0x00, 0x00, 0x01},
			expectError: ErrInvalidHeader,
		},
		{
			name: "QDCOUNT larger than buffer",
			query: []byte{
				0x12, 0x34,
				0x01, 0x00,
				0x00, 0x02, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x01, 'a', 0x00, 0x00, 0x01, 0x00, 0x01,
			},
			expectError: ErrBufferTooShort,
		},
		{
			name: "compressed QName",
			query: []byte{
				0x12, 0x34,
				0x01, 0x00,
				0x00, 0x01, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0xc0, 0x0c,
				0x00, 0x01,
				0x00, 0x01,
			},
			expectError: ErrInvalidQuestion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseDNSMessage(tt.query)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Equal(t, Message{}, msg)
				return
			}
			require.NoError(t, err)
			require.Len(t, msg.Questions, 1)
			assert.Equal(t, tt.expectQName, msg.Questions[0].Name)
			assert.Equal(t, tt.expectQType, msg.Questions[0].Type)
		})
	}
}

func TestParseDNSMessageHeaderOnly(t *testing.T) {
	query := []byte{
		0xbe, 0xef,
		0x01, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}

	msg, err := ParseDNSMessage(query)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xbeef), msg.Header.ID)
	assert.Empty(t, msg.Questions)
}

func TestParseDNSMessageMultipleQuestions(t *testing.T) {
	query := []byte{
		0x00, 0x07,
		0x01, 0x00,
		0x00, 0x03, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 0x03, 'c', 'o', 'm', 0x00,
		0x00, 0x01, 0x00, 0x01,
		0x01, 'a', 0x02, 'i', 'o', 0x00,
		0x00, 0x0f, 0x00, 0x03,
		0x00,
		0x00, 0x02, 0x00, 0xff,
	}

	msg, err := ParseDNSMessage(query)
	require.NoError(t, err)
	assert.Equal(t, []Question{
		{Name: "example.com", Type: RTA, Class: RCIN},
		{Name: "a.io", Type: RTMX, Class: RCCH},
		{Name: "", Type: RTNS, Class: RCSTAR},
	}, msg.Questions)
}

func TestParseDNSMessageMatchesMiekg(t *testing.T) {
	tests := []struct {
		domain string
		qtype  uint16
	}{
		{"example.org.", dns.TypeMX},
		{"www.google.com.", dns.TypeAAAA},
		{"_sip._tcp.example.net.", dns.TypeSRV},
		{"4.3.2.1.in-addr.arpa.", dns.TypePTR},
		{".", dns.TypeNS},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			m := new(dns.Msg)
			m.SetQuestion(tt.domain, tt.qtype)
			m.Id = 0x4242
			wire, err := m.Pack()
			require.NoError(t, err)

			msg, err := ParseDNSMessage(wire)
			require.NoError(t, err)
			assert.Equal(t, uint16(0x4242), msg.Header.ID)
			assert.True(t, msg.Header.Flags.RD)
			assert.False(t, msg.Header.Flags.QR)
			require.Len(t, msg.Questions, 1)
			assert.Equal(t, strings.TrimSuffix(tt.domain, "."), msg.Questions[0].Name)
			assert.Equal(t, RecordType(tt.qtype), msg.Questions[0].Type)
			assert.Equal(t, RCIN, msg.Questions[0].Class)
			assert.Equal(t, dns.TypeToString[tt.qtype], msg.Questions[0].Type.String())
		})
	}
}

func TestDecodeErrorKinds(t *testing.T) {
	kinds := []DecodeError{ErrInvalidHeader, ErrInvalidQuestion, ErrInvalidResourceRecord, ErrBufferTooShort}
	for i, a := range kinds {
		for j, b := range kinds {
			assert.Equal(t, i == j, errors.Is(a, b))
		}
		assert.True(t, strings.HasPrefix(a.Error(), "parser: "))
	}
}

func TestParseRecordType(t *testing.T) {
	tests := []struct {
		name   string
		want   RecordType
		wantOK bool
	}{
		{"A", RTA, true},
		{"aaaa", RTAAAA, true},
		{"Https", RTHTTPS, true},
		{"ANY", RTSTAR, true},
		{"NOPE", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRecordType(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
