package metrics

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/cactus/go-statsd-client/statsd"
)

// StatsdClient is an abstraction over a UDP statsd emitter.
type StatsdClient struct {
	backend     statsd.Statter
	defaultTags map[string]string
	sampleRate  float32
}

// NewStatsdClient creates a new statsd client pointing at the specified server address with a
// prefix and a set of default tags to include with every metric.
func NewStatsdClient(addr string, prefix string, defaultTags map[string]string, sampleRate float32) (*StatsdClient, error) {
	client, err := statsd.NewClient(addr, prefix)
	if err != nil {
		return nil, fmt.Errorf("statsd: error creating statsd client: err=%v", err)
	}

	return &StatsdClient{
		backend:     client,
		defaultTags: defaultTags,
		sampleRate:  sampleRate,
	}, nil
}

// Count emits a count metric with a configurable delta.
func (c *StatsdClient) Count(metric string, delta int64, tags map[string]string) error {
	return c.backend.Inc(c.formatMetric(metric, tags), delta, c.sampleRate)
}

// Timing emits a time duration metric.
func (c *StatsdClient) Timing(metric string, duration time.Duration, tags map[string]string) error {
	return c.backend.TimingDuration(c.formatMetric(metric, tags), duration, c.sampleRate)
}

// Size emits a datagram size metric as the number of bytes. Sizes are aggregated like timings.
func (c *StatsdClient) Size(metric string, size int64, tags map[string]string) error {
	return c.backend.Timing(c.formatMetric(metric, tags), size, c.sampleRate)
}

// Close flushes and closes the underlying statsd connection.
func (c *StatsdClient) Close() error {
	return c.backend.Close()
}

// formatMetric serializes a metric and its tags, merged over the default tags, into a single
// InfluxDB-style string. Names and tags are URL escaped since colons and pipes break the statsd
// line protocol. Tags are sorted by key.
func (c *StatsdClient) formatMetric(metric string, tags map[string]string) string {
	escapedMetric := url.QueryEscape(metric)

	if len(c.defaultTags)+len(tags) == 0 {
		return escapedMetric
	}

	mergedTags := make(map[string]string, len(c.defaultTags)+len(tags))
	maps.Copy(mergedTags, c.defaultTags)
	maps.Copy(mergedTags, tags)

	components := make([]string, 0, len(mergedTags))
	for _, key := range slices.Sorted(maps.Keys(mergedTags)) {
		components = append(
			components,
			fmt.Sprintf("%s=%s", url.QueryEscape(key), url.QueryEscape(mergedTags[key])),
		)
	}

	return fmt.Sprintf("%s,%s", escapedMetric, strings.Join(components, ","))
}
