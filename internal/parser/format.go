package parser

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

func (f Flags) String() string {
	return fmt.Sprintf(
		"qr=%t opcode=%d aa=%t tc=%t rd=%t ra=%t z=%d rcode=%d",
		f.QR, f.Opcode, f.AA, f.TC, f.RD, f.RA, f.Z, f.RCode,
	)
}

func (h Header) String() string {
	return fmt.Sprintf(
		"id=%d %s qd=%d an=%d ns=%d ar=%d",
		h.ID, h.Flags, h.QDCount, h.ANCount, h.NSCount, h.ARCount,
	)
}

func (q Question) String() string {
	return fmt.Sprintf("%s %s %s", q.Name, q.Class, q.Type)
}

func (m Message) String() string {
	var b strings.Builder
	b.WriteString(m.Header.String())
	for _, q := range m.Questions {
		b.WriteString("; ")
		b.WriteString(q.String())
	}
	return b.String()
}

func (f Flags) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("qr", f.QR)
	enc.AddUint8("opcode", f.Opcode)
	enc.AddBool("aa", f.AA)
	enc.AddBool("tc", f.TC)
	enc.AddBool("rd", f.RD)
	enc.AddBool("ra", f.RA)
	enc.AddUint8("z", f.Z)
	enc.AddUint8("rcode", f.RCode)
	return nil
}

func (h Header) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint16("id", h.ID)
	if err := enc.AddObject("flags", h.Flags); err != nil {
		return err
	}
	enc.AddUint16("qdcount", h.QDCount)
	enc.AddUint16("ancount", h.ANCount)
	enc.AddUint16("nscount", h.NSCount)
	enc.AddUint16("arcount", h.ARCount)
	return nil
}

func (q Question) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("name", q.Name)
	enc.AddString("type", q.Type.String())
	enc.AddString("class", q.Class.String())
	return nil
}

type questions []Question

func (qs questions) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, q := range qs {
		if err := enc.AppendObject(q); err != nil {
			return err
		}
	}
	return nil
}

func (m Message) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if err := enc.AddObject("header", m.Header); err != nil {
		return err
	}
	return enc.AddArray("questions", questions(m.Questions))
}
