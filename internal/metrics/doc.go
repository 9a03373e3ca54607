// Package metrics contains hooks invoked by the relay and server while a datagram is handled.
// Implementations decide where the numbers go; the only output engine is statsd.
package metrics
