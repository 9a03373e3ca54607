package metrics

import (
	"net"
	"os"
	"sync"
	"time"
)

// ProxyHook is a metrics hook interface for reporting events and latencies related to relaying a
// single client datagram to the upstream resolver.
type ProxyHook interface {
	// EmitRequestSize reports the size of a datagram received from a client.
	EmitRequestSize(bytes int64, client net.Addr)

	// EmitResponseSize reports the size of a reply received from the upstream.
	EmitResponseSize(bytes int64, upstream net.Addr)

	// EmitRTT reports the end-to-end latency of serving one datagram, from receipt until the
	// reply is written back to the client.
	EmitRTT(latency time.Duration, client net.Addr)

	// EmitUpstreamLatency reports the latency of the send-and-wait exchange with the upstream.
	EmitUpstreamLatency(latency time.Duration, upstream net.Addr)

	// EmitDecodeError reports a datagram that could not be decoded. It is still relayed.
	EmitDecodeError(client net.Addr)

	// EmitTimeout reports that the upstream did not reply within the relay timeout.
	EmitTimeout(upstream net.Addr)

	// EmitError reports a relay failure that left the client without a reply.
	EmitError()

	// Close releases the output engine.
	Close() error
}

// AsyncStatsdProxyHook is an implementation of ProxyHook that outputs metrics asynchronously to
// statsd.
type AsyncStatsdProxyHook struct {
	client   *StatsdClient
	inflight sync.WaitGroup
}

// NoopProxyHook implements the ProxyHook interface but noops on all emissions.
type NoopProxyHook struct{}

// NewAsyncStatsdProxyHook creates a new hook with the specified statsd address and sample rate.
func NewAsyncStatsdProxyHook(addr string, sampleRate float32, version string) (ProxyHook, error) {
	client, err := statsdClientFactory(addr, sampleRate, version)
	if err != nil {
		return nil, err
	}

	return &AsyncStatsdProxyHook{client: client}, nil
}

// emit runs send in the background and tracks it until Close.
func (h *AsyncStatsdProxyHook) emit(send func() error) {
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		send()
	}()
}

// EmitRequestSize statsd implementation
func (h *AsyncStatsdProxyHook) EmitRequestSize(bytes int64, client net.Addr) {
	h.emit(func() error {
		return h.client.Size("size.relay.request", bytes, map[string]string{
			"addr": ipFromAddr(client),
		})
	})
}

// EmitResponseSize statsd implementation
func (h *AsyncStatsdProxyHook) EmitResponseSize(bytes int64, upstream net.Addr) {
	h.emit(func() error {
		return h.client.Size("size.relay.response", bytes, map[string]string{
			"addr": ipFromAddr(upstream),
		})
	})
}

// EmitRTT statsd implementation
func (h *AsyncStatsdProxyHook) EmitRTT(latency time.Duration, client net.Addr) {
	h.emit(func() error {
		return h.client.Timing("latency.relay.tx_rtt", latency, map[string]string{
			"client": ipFromAddr(client),
		})
	})
}

// EmitUpstreamLatency statsd implementation
func (h *AsyncStatsdProxyHook) EmitUpstreamLatency(latency time.Duration, upstream net.Addr) {
	h.emit(func() error {
		return h.client.Timing("latency.relay.tx_upstream", latency, map[string]string{
			"upstream": ipFromAddr(upstream),
		})
	})
}

// EmitDecodeError statsd implementation
func (h *AsyncStatsdProxyHook) EmitDecodeError(client net.Addr) {
	h.emit(func() error {
		return h.client.Count("event.relay.decode_error", 1, map[string]string{
			"client": ipFromAddr(client),
		})
	})
}

// EmitTimeout statsd implementation
func (h *AsyncStatsdProxyHook) EmitTimeout(upstream net.Addr) {
	h.emit(func() error {
		return h.client.Count("event.relay.timeout", 1, map[string]string{
			"upstream": ipFromAddr(upstream),
		})
	})
}

// EmitError statsd implementation
func (h *AsyncStatsdProxyHook) EmitError() {
	h.emit(func() error { return h.client.Count("event.relay.error", 1, nil) })
}

// Close waits for emissions still in flight, then closes the statsd client.
func (h *AsyncStatsdProxyHook) Close() error {
	h.inflight.Wait()
	return h.client.Close()
}

// NewNoopProxyHook creates a noop implementation of ProxyHook.
func NewNoopProxyHook() ProxyHook {
	return &NoopProxyHook{}
}

// EmitRequestSize noops.
func (h *NoopProxyHook) EmitRequestSize(bytes int64, client net.Addr) {}

// EmitResponseSize noops.
func (h *NoopProxyHook) EmitResponseSize(bytes int64, upstream net.Addr) {}

// EmitRTT noops.
func (h *NoopProxyHook) EmitRTT(latency time.Duration, client net.Addr) {}

// EmitUpstreamLatency noops.
func (h *NoopProxyHook) EmitUpstreamLatency(latency time.Duration, upstream net.Addr) {}

// EmitDecodeError noops.
func (h *NoopProxyHook) EmitDecodeError(client net.Addr) {}

// EmitTimeout noops.
func (h *NoopProxyHook) EmitTimeout(upstream net.Addr) {}

// EmitError noops.
func (h *NoopProxyHook) EmitError() {}

// Close noops.
func (h *NoopProxyHook) Close() error { return nil }

// statsdClientFactory creates a StatsdClient tagged with the local hostname and build version.
func statsdClientFactory(addr string, sampleRate float32, version string) (*StatsdClient, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}

	defaultTags := map[string]string{
		"host":    hostname,
		"version": version,
	}

	return NewStatsdClient(addr, "tinydns", defaultTags, sampleRate)
}

// ipFromAddr returns the IP address from a full net.Addr, or null if unavailable.
func ipFromAddr(addr net.Addr) string {
	switch networkAddr := addr.(type) {
	case *net.UDPAddr:
		return networkAddr.IP.String()
	default:
		return "null"
	}
}
