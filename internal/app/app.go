// Package app turns a loaded testtracker.yml into a ready client, resolver
// and collector.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"testtracker/internal/config"
	trackersdk "testtracker/sdk/go"
	"testtracker/sdk/go/collector"
	"testtracker/sdk/go/resolve"
)

// ParseLevel maps a config level name to slog; empty means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// NewLogger builds the structured logger described by cfg, writing to w.
func NewLogger(cfg config.Log, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(handler), nil
}

// Deps is everything built from one config.
type Deps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *trackersdk.Metrics
	Client   *trackersdk.Client
	Resolver *resolve.Resolver
}

// Options tune Build.
type Options struct {
	Logger *slog.Logger
	// Registerer receives the client counters when metrics are enabled.
	Registerer prometheus.Registerer
}

// Build validates cfg and wires the transport and resolver.
func Build(cfg *config.Config, opts Options) (*Deps, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var metrics *trackersdk.Metrics
	if cfg.Collector.Metrics {
		reg := opts.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		metrics = trackersdk.NewMetrics(reg)
	}
	client := trackersdk.New(ClientOptions(cfg, logger, metrics))
	return &Deps{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Client:   client,
		Resolver: resolve.New(client, logger),
	}, nil
}

// ClientOptions maps the service section onto transport options.
func ClientOptions(cfg *config.Config, logger *slog.Logger, metrics *trackersdk.Metrics) trackersdk.Options {
	s := cfg.Service
	return trackersdk.Options{
		BaseURL:                  s.BaseURL,
		Username:                 s.User,
		Password:                 s.APIKey,
		RetryCount:               s.RetryCount,
		RetryInterval:            s.RetryInterval,
		ConnectTimeout:           s.ConnectTimeout,
		ConnectionRequestTimeout: s.ConnectionRequestTimeout,
		SocketTimeout:            s.SocketTimeout,
		Logger:                   logger,
		Metrics:                  metrics,
	}
}

// Collector returns a collector publishing through the client.
func (d *Deps) Collector() *collector.Collector {
	c := d.Config.Collector
	return collector.New(d.Client, collector.Options{
		Logger:       d.Logger,
		Metrics:      d.Metrics,
		ArtifactPath: c.ArtifactPath,
		AbortOnError: c.AbortOnError,
		CacheLookups: c.CacheLookups,
	})
}
