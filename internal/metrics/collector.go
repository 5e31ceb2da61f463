// Package metrics exposes mount operation counters through Prometheus.
// Collection is optional; a nil *Collector or a disabled config turns every
// recording method into a no-op so callers never guard their calls.
package metrics

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config represents metrics configuration.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   false,
		Port:      9190,
		Path:      "/metrics",
		Namespace: "vfskit",
	}
}

// Collector records per-verb mount bridge metrics and, when enabled, serves
// them over HTTP from its own registry.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorCounter      *prometheus.CounterVec
	activeMounts      prometheus.Gauge

	server *http.Server

	mu        sync.RWMutex
	lastReset time.Time
}

// NewCollector creates a collector. A disabled config produces a collector
// whose recording methods do nothing.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
		config.Enabled = true
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	c := &Collector{
		config:    config,
		registry:  prometheus.NewRegistry(),
		lastReset: time.Now(),
	}

	c.operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "operations_total",
			Help:      "Total number of bridge operations",
		},
		[]string{"operation", "status"},
	)

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of bridge operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16), // 100us to ~3s
		},
		[]string{"operation"},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "errors_total",
			Help:      "Total number of bridge errors by code",
		},
		[]string{"operation", "code"},
	)

	c.activeMounts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "active_mounts",
			Help:      "Number of currently mounted filesystems",
		},
	)

	for _, m := range []prometheus.Collector{
		c.operationCounter,
		c.operationDuration,
		c.errorCounter,
		c.activeMounts,
	} {
		if err := c.registry.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	return c, nil
}

// Start serves the metrics endpoint in the background.
func (c *Collector) Start(ctx context.Context) error {
	if c == nil || !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"vfskit-metrics"}`))
	})

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	return nil
}

// Registry exposes the collector's registry, for embedding the metrics in an
// existing HTTP server or scraping them in tests. Nil when disabled.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Stop shuts the metrics endpoint down.
func (c *Collector) Stop(ctx context.Context) error {
	if c == nil || c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// RecordOperation records one bridge verb invocation.
func (c *Collector) RecordOperation(operation string, duration time.Duration, success bool) {
	if c == nil || !c.config.Enabled {
		return
	}

	status := "success"
	if !success {
		status = "error"
	}
	c.operationCounter.With(prometheus.Labels{
		"operation": operation,
		"status":    status,
	}).Inc()
	c.operationDuration.With(prometheus.Labels{
		"operation": operation,
	}).Observe(duration.Seconds())
}

// RecordError records a failed verb with its error code.
func (c *Collector) RecordError(operation, code string) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.errorCounter.With(prometheus.Labels{
		"operation": operation,
		"code":      code,
	}).Inc()
}

// MountStarted increments the live mount gauge.
func (c *Collector) MountStarted() {
	if c == nil || !c.config.Enabled {
		return
	}
	c.activeMounts.Inc()
}

// MountStopped decrements the live mount gauge.
func (c *Collector) MountStopped() {
	if c == nil || !c.config.Enabled {
		return
	}
	c.activeMounts.Dec()
}
