package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tinydns/internal/logging"
	"tinydns/internal/parser"
)

func main() {
	addr := flag.String("addr", ":5353", "UDP address to listen on")
	verbosity := flag.String("verbosity", "info", "desired logging verbosity: one of debug, info, warn, error")
	dev := flag.Bool("dev", true, "log in human-readable console format")
	flag.Parse()

	logger, err := logging.New(*verbosity, *dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dump(ctx, logger, *addr); err != nil {
		logger.Error("dnsdump exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// dump logs every datagram received on addr as a decoded DNS message. Nothing
// is answered or forwarded.
func dump(ctx context.Context, logger *zap.Logger, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("error resolving listen address: addr=%s err=%v", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("error binding listener: addr=%s err=%v", addr, err)
	}
	defer conn.Close()

	stopRead := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stopRead()

	logger.Info("Listening for DNS messages", zap.Stringer("addr", conn.LocalAddr()))

	buf := make([]byte, parser.MaxDatagramSize)
	for ctx.Err() == nil {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
				continue
			}
			return err
		}

		msg, err := parser.ParseDNSMessage(buf[:n])
		if err != nil {
			logger.Warn("Failed to decode DNS message",
				zap.Stringer("client", src),
				zap.Int("bytes", n),
				zap.Error(err))
			continue
		}
		logger.Info("Received DNS message",
			zap.Stringer("client", src),
			zap.Object("message", msg))
	}
	return nil
}
