package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"tinydns/internal/metrics"
	"tinydns/internal/parser"
)

// DefaultTimeout bounds the wait for an upstream reply.
const DefaultTimeout = 5 * time.Second

var (
	ErrDial    = errors.New("relay: error opening upstream endpoint")
	ErrSend    = errors.New("relay: error sending query to upstream")
	ErrReceive = errors.New("relay: error receiving response from upstream")
	ErrTimeout = errors.New("relay: timed out waiting for upstream response")
)

// Opts formalizes optional parameters of a Relay.
type Opts struct {
	// Timeout bounds the wait for a reply. Zero means DefaultTimeout.
	Timeout time.Duration
	Hook    metrics.ProxyHook
	Logger  *zap.Logger
}

// Relay forwards raw queries to one upstream resolver over UDP. Each call to
// Forward uses a fresh unconnected socket, so the first datagram read back is
// the reply to that query. Transaction ids and reply sources are not compared.
// ICMP errors are not reported on unconnected sockets, so an unreachable
// upstream surfaces as ErrTimeout.
type Relay struct {
	upstream *net.UDPAddr
	timeout  time.Duration
	hook     metrics.ProxyHook
	logger   *zap.Logger
}

func New(upstream string, opts Opts) (*Relay, error) {
	addr, err := net.ResolveUDPAddr("udp", upstream)
	if err != nil {
		return nil, fmt.Errorf("relay: error resolving upstream: addr=%s err=%v", upstream, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Hook == nil {
		opts.Hook = metrics.NewNoopProxyHook()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Relay{
		upstream: addr,
		timeout:  opts.Timeout,
		hook:     opts.Hook,
		logger:   opts.Logger,
	}, nil
}

// Upstream returns the resolved upstream address.
func (r *Relay) Upstream() net.Addr {
	return r.upstream
}

// Forward sends query to the upstream exactly once and waits for a reply
// until the timeout, or the context deadline if that is earlier. The returned
// slice holds exactly the bytes received.
func (r *Relay) Forward(ctx context.Context, query []byte) ([]byte, error) {
	timer := metrics.NewTimer()

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: addr=%s err=%v", ErrDial, r.upstream, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(r.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: addr=%s err=%v", ErrDial, r.upstream, err)
	}

	if _, err := conn.WriteToUDP(query, r.upstream); err != nil {
		return nil, fmt.Errorf("%w: addr=%s err=%v", ErrSend, r.upstream, err)
	}
	r.logger.Debug("Wrote query to upstream",
		zap.Stringer("upstream", r.upstream),
		zap.Int("bytes", len(query)))

	resp := make([]byte, parser.MaxDatagramSize)
	n, _, err := conn.ReadFromUDP(resp)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			r.hook.EmitTimeout(r.upstream)
			return nil, fmt.Errorf("%w: addr=%s elapsed=%v", ErrTimeout, r.upstream, timer.Elapsed())
		}
		return nil, fmt.Errorf("%w: addr=%s err=%v", ErrReceive, r.upstream, err)
	}

	r.hook.EmitUpstreamLatency(timer.Elapsed(), r.upstream)
	r.hook.EmitResponseSize(int64(n), r.upstream)
	r.logger.Debug("Read response from upstream",
		zap.Stringer("upstream", r.upstream),
		zap.Int("bytes", n),
		zap.Duration("latency", timer.Elapsed()))

	return resp[:n], nil
}
