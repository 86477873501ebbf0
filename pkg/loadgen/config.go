package loadgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/assetnote/n1qlback/pkg/metrics"
)

// Metrics receives the outcome of every request. *metrics.Aggregator satisfies this
type Metrics interface {
	RecordQuery(rows uint64)
	RecordError(n uint64) uint64
	RecordLatency(d time.Duration)
	MaybeReport() bool
}

// ErrorLog persists failed requests. Log is expected to count the error with the Metrics so the
// returned sequence number and the error count agree. *errlog.Sink satisfies this
type ErrorLog interface {
	Log(description string, context []byte) (uint64, error)
}

var _ Metrics = &metrics.Aggregator{}

type Config struct {
	Workers int `toml:"workers" json:"workers" mapstructure:"workers"`
	// Seed seeds the per worker shuffle. Worker i uses Seed+i. 0 seeds from the clock
	Seed int64 `toml:"seed" json:"seed" mapstructure:"seed"`
	// Reshuffle shuffles the worker's copy again on every full pass instead of only once
	Reshuffle bool `toml:"reshuffle" json:"reshuffle" mapstructure:"reshuffle"`
	// RateLimit caps the queries per second issued across all workers. 0 is unlimited
	RateLimit float64 `toml:"rate" json:"rate" mapstructure:"rate"`
	// MaxQueries stops each worker after it has issued this many queries. 0 runs until cancelled
	MaxQueries int `toml:"max_queries" json:"max_queries" mapstructure:"max_queries"`
	// ReportInterval is how often the engine asks Metrics to report when no request completes.
	// 0 disables the ticker and reports are only driven by completed requests
	ReportInterval time.Duration

	Metrics  Metrics
	ErrorLog ErrorLog
}

func NewDefaultConfig() *Config {
	return &Config{
		Workers:        1,
		ReportInterval: metrics.DefaultInterval,
	}
}

type ErrBadConfig struct {
	fields []string
}

func (e *ErrBadConfig) Error() string {
	return fmt.Sprintf("config has invalid values in: %v", strings.Join(e.fields, ", "))
}

func (c *Config) Validate() error {
	badFields := make([]string, 0)
	if c.Workers < 1 {
		badFields = append(badFields, "Workers")
	}
	if c.RateLimit < 0 {
		badFields = append(badFields, "RateLimit")
	}
	if c.MaxQueries < 0 {
		badFields = append(badFields, "MaxQueries")
	}
	if c.Metrics == nil {
		badFields = append(badFields, "Metrics")
	}
	if len(badFields) != 0 {
		return &ErrBadConfig{fields: badFields}
	}
	return nil
}

type ConfigOption func(*Config)

func Workers(n int) ConfigOption {
	return func(c *Config) {
		c.Workers = n
	}
}

func Seed(n int64) ConfigOption {
	return func(c *Config) {
		c.Seed = n
	}
}

func Reshuffle(enabled bool) ConfigOption {
	return func(c *Config) {
		c.Reshuffle = enabled
	}
}

func RateLimit(qps float64) ConfigOption {
	return func(c *Config) {
		c.RateLimit = qps
	}
}

func MaxQueries(n int) ConfigOption {
	return func(c *Config) {
		c.MaxQueries = n
	}
}

func ReportInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.ReportInterval = d
	}
}

func WithMetrics(m Metrics) ConfigOption {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithErrorLog sets where failed requests are written. Passing nil disables the error log
func WithErrorLog(l ErrorLog) ConfigOption {
	return func(c *Config) {
		c.ErrorLog = l
	}
}
