package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/dns/dnsmessage"

	"tinydns/internal/logging"
	"tinydns/internal/parser"
	"tinydns/internal/relay"
)

func main() {
	server := flag.String("server", "127.0.0.1:53", "resolver or relay to query")
	qtype := flag.String("type", "A", "record type to ask for")
	timeout := flag.Duration("timeout", relay.DefaultTimeout, "how long to wait for a reply")
	verbosity := flag.String("verbosity", "warn", "desired logging verbosity: one of debug, info, warn, error")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] domain\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := logging.New(*verbosity, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(logger, *server, flag.Arg(0), *qtype, *timeout); err != nil {
		logger.Error("Query failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(logger *zap.Logger, server, domain, qtype string, timeout time.Duration) error {
	rt, ok := parser.ParseRecordType(qtype)
	if !ok {
		return fmt.Errorf("unknown record type: type=%s", qtype)
	}

	query, err := parser.CreateQuery(parser.GenerateID(), domain, rt, parser.RCIN)
	if err != nil {
		return err
	}

	r, err := relay.New(server, relay.Opts{Timeout: timeout, Logger: logger})
	if err != nil {
		return err
	}

	resp, err := r.Forward(context.Background(), query)
	if err != nil {
		return err
	}

	header, err := parser.ParseHeader(resp)
	if err != nil {
		return err
	}
	fmt.Printf(";; %s\n", header)

	var msg dnsmessage.Message
	if err := msg.Unpack(resp); err != nil {
		return fmt.Errorf("error unpacking response: err=%v", err)
	}
	printSection("ANSWER", msg.Answers)
	printSection("AUTHORITY", msg.Authorities)
	printSection("ADDITIONAL", msg.Additionals)
	return nil
}

func printSection(name string, rrs []dnsmessage.Resource) {
	if len(rrs) == 0 {
		return
	}
	fmt.Printf(";; %s SECTION:\n", name)
	for _, rr := range rrs {
		fmt.Printf("%s\t%d\t%s\t%s\t%s\n",
			rr.Header.Name,
			rr.Header.TTL,
			parser.RecordClass(rr.Header.Class),
			parser.RecordType(rr.Header.Type),
			formatBody(rr.Body))
	}
}

func formatBody(body dnsmessage.ResourceBody) string {
	switch b := body.(type) {
	case *dnsmessage.AResource:
		return net.IP(b.A[:]).String()
	case *dnsmessage.AAAAResource:
		return net.IP(b.AAAA[:]).String()
	case *dnsmessage.CNAMEResource:
		return b.CNAME.String()
	case *dnsmessage.NSResource:
		return b.NS.String()
	case *dnsmessage.PTRResource:
		return b.PTR.String()
	case *dnsmessage.MXResource:
		return fmt.Sprintf("%d %s", b.Pref, b.MX)
	case *dnsmessage.TXTResource:
		return strings.Join(b.TXT, " ")
	case *dnsmessage.SOAResource:
		return fmt.Sprintf("%s %s %d", b.NS, b.MBox, b.Serial)
	default:
		return fmt.Sprintf("%T", body)
	}
}
