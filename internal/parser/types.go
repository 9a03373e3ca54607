package parser

import (
	"fmt"
	"strings"
)

// HeaderSize is the fixed length of the DNS message header on the wire.
const HeaderSize = 12

// MaxDatagramSize is the largest UDP datagram read in a single receive.
const MaxDatagramSize = 512

type RecordType uint16

const (
	RTA          RecordType = 1
	RTNS         RecordType = 2
	RTMD         RecordType = 3
	RTMF         RecordType = 4
	RTCNAME      RecordType = 5
	RTSOA        RecordType = 6
	RTMB         RecordType = 7
	RTMG         RecordType = 8
	RTMR         RecordType = 9
	RTNULL       RecordType = 10
	RTPTR        RecordType = 12
	RTHINFO      RecordType = 13
	RTMINFO      RecordType = 14
	RTMX         RecordType = 15
	RTTXT        RecordType = 16
	RTRP         RecordType = 17
	RTAFSDB      RecordType = 18
	RTX25        RecordType = 19
	RTISDN       RecordType = 20
	RTRT         RecordType = 21
	RTNSAPPTR    RecordType = 23
	RTSIG        RecordType = 24
	RTKEY        RecordType = 25
	RTPX         RecordType = 26
	RTGPOS       RecordType = 27
	RTAAAA       RecordType = 28
	RTLOC        RecordType = 29
	RTNXT        RecordType = 30
	RTEID        RecordType = 31
	RTNIMLOC     RecordType = 32
	RTSRV        RecordType = 33
	RTATMA       RecordType = 34
	RTNAPTR      RecordType = 35
	RTKX         RecordType = 36
	RTCERT       RecordType = 37
	RTDNAME      RecordType = 39
	RTOPT        RecordType = 41
	RTAPL        RecordType = 42
	RTDS         RecordType = 43
	RTSSHFP      RecordType = 44
	RTIPSECKEY   RecordType = 45
	RTRRSIG      RecordType = 46
	RTNSEC       RecordType = 47
	RTDNSKEY     RecordType = 48
	RTDHCID      RecordType = 49
	RTNSEC3      RecordType = 50
	RTNSEC3PARAM RecordType = 51
	RTTLSA       RecordType = 52
	RTSMIMEA     RecordType = 53
	RTHIP        RecordType = 55
	RTNINFO      RecordType = 56
	RTRKEY       RecordType = 57
	RTTALINK     RecordType = 58
	RTCDS        RecordType = 59
	RTCDNSKEY    RecordType = 60
	RTOPENPGPKEY RecordType = 61
	RTCSYNC      RecordType = 62
	RTZONEMD     RecordType = 63
	RTSVCB       RecordType = 64
	RTHTTPS      RecordType = 65
	RTSPF        RecordType = 99
	RTUINFO      RecordType = 100
	RTUID        RecordType = 101
	RTGID        RecordType = 102
	RTUNSPEC     RecordType = 103
	RTNID        RecordType = 104
	RTL32        RecordType = 105
	RTL64        RecordType = 106
	RTLP         RecordType = 107
	RTEUI48      RecordType = 108
	RTEUI64      RecordType = 109
	RTNXNAME     RecordType = 128
	RTTKEY       RecordType = 249
	RTTSIG       RecordType = 250
	RTIXFR       RecordType = 251
	RTAXFR       RecordType = 252
	RTMAILB      RecordType = 253
	RTMAILA      RecordType = 254
	RTSTAR       RecordType = 255
	RTURI        RecordType = 256
	RTCAA        RecordType = 257
	RTAVC        RecordType = 258
	RTAMTRELAY   RecordType = 260
	RTTA         RecordType = 32768
	RTDLV        RecordType = 32769
	RTReserved   RecordType = 65535
)

var recordTypeNames = map[RecordType]string{
	RTA: "A", RTNS: "NS", RTMD: "MD", RTMF: "MF", RTCNAME: "CNAME",
	RTSOA: "SOA", RTMB: "MB", RTMG: "MG", RTMR: "MR", RTNULL: "NULL",
	RTPTR: "PTR", RTHINFO: "HINFO", RTMINFO: "MINFO", RTMX: "MX", RTTXT: "TXT",
	RTRP: "RP", RTAFSDB: "AFSDB", RTX25: "X25", RTISDN: "ISDN", RTRT: "RT",
	RTNSAPPTR: "NSAP-PTR", RTSIG: "SIG", RTKEY: "KEY", RTPX: "PX", RTGPOS: "GPOS",
	RTAAAA: "AAAA", RTLOC: "LOC", RTNXT: "NXT", RTEID: "EID", RTNIMLOC: "NIMLOC",
	RTSRV: "SRV", RTATMA: "ATMA", RTNAPTR: "NAPTR", RTKX: "KX", RTCERT: "CERT",
	RTDNAME: "DNAME", RTOPT: "OPT", RTAPL: "APL", RTDS: "DS", RTSSHFP: "SSHFP",
	RTIPSECKEY: "IPSECKEY", RTRRSIG: "RRSIG", RTNSEC: "NSEC", RTDNSKEY: "DNSKEY",
	RTDHCID: "DHCID", RTNSEC3: "NSEC3", RTNSEC3PARAM: "NSEC3PARAM", RTTLSA: "TLSA",
	RTSMIMEA: "SMIMEA", RTHIP: "HIP", RTNINFO: "NINFO", RTRKEY: "RKEY",
	RTTALINK: "TALINK", RTCDS: "CDS", RTCDNSKEY: "CDNSKEY", RTOPENPGPKEY: "OPENPGPKEY",
	RTCSYNC: "CSYNC", RTZONEMD: "ZONEMD", RTSVCB: "SVCB", RTHTTPS: "HTTPS",
	RTSPF: "SPF", RTUINFO: "UINFO", RTUID: "UID", RTGID: "GID", RTUNSPEC: "UNSPEC",
	RTNID: "NID", RTL32: "L32", RTL64: "L64", RTLP: "LP", RTEUI48: "EUI48",
	RTEUI64: "EUI64", RTNXNAME: "NXNAME", RTTKEY: "TKEY", RTTSIG: "TSIG",
	RTIXFR: "IXFR", RTAXFR: "AXFR", RTMAILB: "MAILB", RTMAILA: "MAILA",
	RTSTAR: "ANY", RTURI: "URI", RTCAA: "CAA", RTAVC: "AVC", RTAMTRELAY: "AMTRELAY",
	RTTA: "TA", RTDLV: "DLV", RTReserved: "RESERVED",
}

// Known reports whether t is one of the enumerated record types. Any other
// code is the Unknown variant; the raw value is kept so nothing is lost.
func (t RecordType) Known() bool {
	_, ok := recordTypeNames[t]
	return ok
}

// ParseRecordType looks up a record type by its case-insensitive name.
func ParseRecordType(name string) (RecordType, bool) {
	name = strings.ToUpper(name)
	for t, n := range recordTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

func (t RecordType) String() string {
	if name, ok := recordTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
}

type RecordClass uint16

const (
	RCIN   RecordClass = 1
	RCCH   RecordClass = 3
	RCHS   RecordClass = 4
	RCOPT  RecordClass = 41
	RCNONE RecordClass = 254
	RCSTAR RecordClass = 255
)

var recordClassNames = map[RecordClass]string{
	RCIN:   "IN",
	RCCH:   "CH",
	RCHS:   "HS",
	RCOPT:  "OPT",
	RCNONE: "NONE",
	RCSTAR: "ANY",
}

// Known reports whether c is one of the enumerated classes.
func (c RecordClass) Known() bool {
	_, ok := recordClassNames[c]
	return ok
}

func (c RecordClass) String() string {
	if name, ok := recordClassNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint16(c))
}

const (
	QRMask     = 0x8000
	OpcodeMask = 0x7800
	AAMask     = 0x0400
	TCMask     = 0x0200
	RDMask     = 0x0100
	RAMask     = 0x0080
	ZMask      = 0x0070
	RCodeMask  = 0x000F
)

// LabelTypeMask selects the two high bits of a label length byte. A non-zero
// value marks a compression pointer or a reserved label type.
const LabelTypeMask = 0xC0

// Flags is the second 16-bit word of the header split into its fields. Z is
// reserved and carried as received.
type Flags struct {
	QR     bool
	Opcode uint8
	AA     bool
	TC     bool
	RD     bool
	RA     bool
	Z      uint8
	RCode  uint8
}

type Header struct {
	ID      uint16
	Flags   Flags
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

type Question struct {
	Name  string
	Type  RecordType
	Class RecordClass
}

// ResourceRecord is a generic record. Data is owned by the record and does not
// alias the buffer it was decoded from.
type ResourceRecord struct {
	Name     string
	Type     RecordType
	Class    RecordClass
	TTL      uint32
	RDLength uint16
	Data     []byte
}

// Message is a decoded request: the header and its questions in wire order.
// Answer, authority and additional sections are not decoded.
type Message struct {
	Header    Header
	Questions []Question
}

type dnsReader struct {
	data []byte
	pos  int
}

type dnsSerializer struct {
	data []byte
}
