package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddress   = "0.0.0.0:53"
	DefaultUpstreamAddress = "8.8.8.8:53"
	DefaultUpstreamTimeout = 5 * time.Second

	dnsPort = "53"
)

// ApplicationConfig is a top-level block for application-level meta configuration.
type ApplicationConfig struct {
	SentryDSN string `yaml:"sentry_dsn"`
}

// StatsdConfig describes the statsd metrics sink.
type StatsdConfig struct {
	Address    string  `yaml:"addr"`
	SampleRate float32 `yaml:"sample_rate"`
}

// MetricsConfig is a top-level block for metrics configuration.
type MetricsConfig struct {
	Statsd *StatsdConfig `yaml:"statsd"`
}

// UDPListenerConfig describes the UDP socket that clients send queries to.
type UDPListenerConfig struct {
	Address string `yaml:"addr"`
}

// ListenerConfig is a top-level block for server listener configuration.
type ListenerConfig struct {
	UDP *UDPListenerConfig `yaml:"udp"`
}

// UpstreamConfig is a top-level block for the upstream resolver.
type UpstreamConfig struct {
	Address string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// Config describes all application configuration options.
type Config struct {
	Application *ApplicationConfig `yaml:"application"`
	Metrics     *MetricsConfig     `yaml:"metrics"`
	Listener    *ListenerConfig    `yaml:"listener"`
	Upstream    *UpstreamConfig    `yaml:"upstream"`
}

// Default returns the configuration used when no file and no environment overrides are given.
func Default() *Config {
	return &Config{
		Application: &ApplicationConfig{},
		Listener: &ListenerConfig{
			UDP: &UDPListenerConfig{Address: DefaultListenAddress},
		},
		Upstream: &UpstreamConfig{
			Address: DefaultUpstreamAddress,
			Timeout: DefaultUpstreamTimeout,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped when path is
// empty), and environment overrides read through lookupEnv, in that order.
func Load(path string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: error reading config: err=%v", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: error parsing config: err=%v", err)
		}
		cfg.fillDefaults()
	}

	if err := cfg.applyEnv(lookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// fillDefaults restores defaults for blocks that a config file nulled out or left empty.
func (c *Config) fillDefaults() {
	if c.Application == nil {
		c.Application = &ApplicationConfig{}
	}
	if c.Listener == nil {
		c.Listener = &ListenerConfig{}
	}
	if c.Listener.UDP == nil {
		c.Listener.UDP = &UDPListenerConfig{}
	}
	if c.Listener.UDP.Address == "" {
		c.Listener.UDP.Address = DefaultListenAddress
	}
	if c.Upstream == nil {
		c.Upstream = &UpstreamConfig{}
	}
	if c.Upstream.Address == "" {
		c.Upstream.Address = DefaultUpstreamAddress
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultUpstreamTimeout
	}
}

// applyEnv applies the PORT and UPSTREAM environment overrides.
func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) error {
	if lookupEnv == nil {
		return nil
	}

	if port, ok := lookupEnv("PORT"); ok && port != "" {
		host, _, err := net.SplitHostPort(c.Listener.UDP.Address)
		if err != nil {
			return fmt.Errorf("config: invalid listen address: addr=%s err=%v", c.Listener.UDP.Address, err)
		}
		c.Listener.UDP.Address = net.JoinHostPort(host, port)
	}

	if upstream, ok := lookupEnv("UPSTREAM"); ok && upstream != "" {
		c.Upstream.Address = upstream
	}

	return nil
}

// validate the contents of the configuration. Returns an error if validation failed; nil otherwise.
func (c *Config) validate() error {
	/* Metrics */

	// Users can omit the metrics block entirely to disable metrics reporting.
	if c.Metrics != nil && c.Metrics.Statsd != nil {
		if c.Metrics.Statsd.Address == "" {
			return fmt.Errorf("config: missing metrics statsd address")
		}

		if c.Metrics.Statsd.SampleRate < 0 || c.Metrics.Statsd.SampleRate > 1 {
			return fmt.Errorf("config: statsd sample rate must be in range [0.0, 1.0]")
		}
	}

	/* Listener */

	if err := validateHostPort(c.Listener.UDP.Address, true); err != nil {
		return fmt.Errorf("config: invalid listen address: addr=%s err=%v", c.Listener.UDP.Address, err)
	}

	/* Upstream */

	upstream, err := withDefaultPort(c.Upstream.Address)
	if err != nil {
		return fmt.Errorf("config: invalid upstream address: addr=%s err=%v", c.Upstream.Address, err)
	}
	if err := validateHostPort(upstream, false); err != nil {
		return fmt.Errorf("config: invalid upstream address: addr=%s err=%v", c.Upstream.Address, err)
	}
	c.Upstream.Address = upstream

	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("config: upstream timeout must be positive: timeout=%v", c.Upstream.Timeout)
	}

	return nil
}

// withDefaultPort appends the DNS port to an address that has none.
func withDefaultPort(addr string) (string, error) {
	if addr == "" {
		return "", fmt.Errorf("empty address")
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr, nil
	}
	host := strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("malformed host")
	}
	return net.JoinHostPort(host, dnsPort), nil
}

func validateHostPort(addr string, allowZeroPort bool) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid port %q", port)
	}
	if n == 0 && !allowZeroPort {
		return fmt.Errorf("port must be non-zero")
	}
	return nil
}
