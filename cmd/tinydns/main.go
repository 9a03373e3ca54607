package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tinydns/internal/config"
	"tinydns/internal/logging"
	"tinydns/internal/meta"
	"tinydns/internal/metrics"
	"tinydns/internal/relay"
	"tinydns/internal/report"
	"tinydns/internal/server"
)

func main() {
	configPath := flag.String(
		"config",
		os.Getenv("TINYDNS_CONFIG"),
		"path to the configuration file on disk",
	)
	version := flag.Bool(
		"version",
		false,
		"print the compiled tinydns version",
	)
	verbosity := flag.String(
		"verbosity",
		"info",
		"desired logging verbosity: one of debug, info, warn, error",
	)
	dev := flag.Bool(
		"dev",
		false,
		"log in human-readable console format",
	)
	flag.Parse()

	if *version {
		fmt.Printf("tinydns/%s\n", meta.Version)
		return
	}

	logger, err := logging.New(*verbosity, *dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(logger, *configPath); err != nil {
		logger.Error("tinydns exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(logger *zap.Logger, configPath string) (err error) {
	logger.Info("tinydns starting", zap.String("version", meta.Version))

	cfg, err := config.Load(configPath, os.LookupEnv)
	if err != nil {
		return err
	}

	reporter := report.Reporter(report.NoopReporter{})
	if cfg.Application.SentryDSN != "" {
		var sentry *report.SentryReporter
		if sentry, err = report.NewSentryReporter(cfg.Application.SentryDSN, meta.Version); err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, sentry.Close()) }()
		reporter = sentry
	}

	hook := metrics.NewNoopProxyHook()
	if cfg.Metrics != nil && cfg.Metrics.Statsd != nil {
		logger.Info("Configuring statsd metrics reporting",
			zap.String("addr", cfg.Metrics.Statsd.Address),
			zap.Float32("sample_rate", cfg.Metrics.Statsd.SampleRate))

		if hook, err = metrics.NewAsyncStatsdProxyHook(
			cfg.Metrics.Statsd.Address,
			cfg.Metrics.Statsd.SampleRate,
			meta.Version,
		); err != nil {
			return err
		}
	} else {
		logger.Debug("No metrics output engine specified; disabling metrics")
	}
	defer func() { err = multierr.Append(err, hook.Close()) }()

	upstream, err := relay.New(cfg.Upstream.Address, relay.Opts{
		Timeout: cfg.Upstream.Timeout,
		Hook:    hook,
		Logger:  logger.Named("relay"),
	})
	if err != nil {
		return err
	}

	srv, err := server.Listen(cfg.Listener.UDP.Address, upstream, server.Opts{
		Hook:     hook,
		Reporter: reporter,
		Logger:   logger.Named("server"),
	})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, srv.Close()) }()

	logger.Info("DNS server is running",
		zap.Stringer("addr", srv.Addr()),
		zap.Stringer("upstream", upstream.Upstream()),
		zap.Duration("timeout", cfg.Upstream.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}
