package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tinydns/internal/metrics"
	"tinydns/internal/parser"
	"tinydns/internal/report"
)

// Bounds of the pause after a failed receive. The pause doubles on each
// consecutive failure and resets after a successful receive.
const (
	minReadBackoff = 5 * time.Millisecond
	maxReadBackoff = time.Second
)

type State int32

const (
	Running State = iota
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting down"
	default:
		return "unknown"
	}
}

// Forwarder relays a raw query upstream and returns the raw reply.
type Forwarder interface {
	Forward(ctx context.Context, query []byte) ([]byte, error)
}

// Opts formalizes optional collaborators of a Server.
type Opts struct {
	Hook     metrics.ProxyHook
	Reporter report.Reporter
	Logger   *zap.Logger
}

// Server reads datagrams from one UDP socket and handles them strictly one at
// a time: decode for logging, forward, write the reply back.
type Server struct {
	conn     *net.UDPConn
	relay    Forwarder
	hook     metrics.ProxyHook
	reporter report.Reporter
	logger   *zap.Logger
	state    atomic.Int32
}

// Listen binds the UDP socket. The returned Server is Running.
func Listen(addr string, relay Forwarder, opts Opts) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: error resolving listen address: addr=%s err=%v", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("server: error binding listener: addr=%s err=%v", addr, err)
	}

	if opts.Hook == nil {
		opts.Hook = metrics.NewNoopProxyHook()
	}
	if opts.Reporter == nil {
		opts.Reporter = report.NoopReporter{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		conn:     conn,
		relay:    relay,
		hook:     opts.Hook,
		reporter: opts.Reporter,
		logger:   opts.Logger,
	}
	s.state.Store(int32(Running))
	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *Server) State() State {
	return State(s.state.Load())
}

// Serve handles datagrams until ctx is cancelled. Cancellation is observed
// between datagrams only: a datagram already being relayed is finished (or
// times out) first.
func (s *Server) Serve(ctx context.Context) error {
	// Unblock a pending read so the loop can observe the cancellation.
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, parser.MaxDatagramSize)
	var backoff time.Duration
	for {
		if ctx.Err() != nil {
			s.state.Store(int32(ShuttingDown))
			s.logger.Info("Shutdown signal received, stopping server")
			return nil
		}

		n, client, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				s.state.Store(int32(ShuttingDown))
				s.logger.Info("Listener closed, stopping server")
				return nil
			}
			backoff = nextBackoff(backoff)
			s.logger.Error("Error receiving from socket",
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		s.handle(ctx, buf[:n], client)
	}
}

func (s *Server) handle(ctx context.Context, datagram []byte, client *net.UDPAddr) {
	rtt := metrics.NewTimer()
	s.hook.EmitRequestSize(int64(len(datagram)), client)
	s.logger.Debug("Received datagram",
		zap.Stringer("client", client),
		zap.Int("bytes", len(datagram)))

	decode := metrics.NewTimer()
	msg, err := parser.ParseDNSMessage(datagram)
	if err != nil {
		s.hook.EmitDecodeError(client)
		s.logger.Warn("Failed to decode DNS message",
			zap.Stringer("client", client),
			zap.Int("bytes", len(datagram)),
			zap.Error(err))
	} else {
		s.logger.Info("Received DNS message",
			zap.Stringer("client", client),
			zap.Object("message", msg))
		s.logger.Debug("Decoded DNS message", zap.Duration("elapsed", decode.Elapsed()))
	}

	resp, err := s.relay.Forward(context.WithoutCancel(ctx), datagram)
	if err != nil {
		s.hook.EmitError()
		s.reporter.Report(err, s.reportTags(client))
		s.logger.Error("Error forwarding query to upstream",
			zap.Stringer("client", client),
			zap.Error(err))
		return
	}

	if _, err := s.conn.WriteToUDP(resp, client); err != nil {
		s.hook.EmitError()
		s.logger.Error("Error sending response",
			zap.Stringer("client", client),
			zap.Error(err))
		return
	}

	s.hook.EmitRTT(rtt.Elapsed(), client)
	s.logger.Debug("Wrote response to client",
		zap.Stringer("client", client),
		zap.Int("bytes", len(resp)),
		zap.Duration("rtt", rtt.Elapsed()))
}

// reportTags labels a relay failure with the client and, when the forwarder
// exposes it, the upstream address.
func (s *Server) reportTags(client *net.UDPAddr) map[string]string {
	tags := map[string]string{"client": client.String()}
	if u, ok := s.relay.(interface{ Upstream() net.Addr }); ok {
		tags["upstream"] = u.Upstream().String()
	}
	return tags
}

// nextBackoff doubles d, clamped to [minReadBackoff, maxReadBackoff].
func nextBackoff(d time.Duration) time.Duration {
	switch {
	case d < minReadBackoff:
		return minReadBackoff
	case d*2 > maxReadBackoff:
		return maxReadBackoff
	default:
		return d * 2
	}
}

// Close releases the listening socket.
func (s *Server) Close() error {
	s.state.Store(int32(ShuttingDown))
	return s.conn.Close()
}
