package adapter

import (
	"strings"
	"time"

	"github.com/realmorph/datakit/docstore"
)

const defaultPageSize = 20

// ReplayConfig tunes how the offline queue retries failed replays.
//
// The zero value reproduces the historical behavior: a failed replay is
// re-appended to the tail of the queue untouched and retried on every
// subsequent sync, forever. Deployments that want bounded retries opt in
// through MaxRetries.
type ReplayConfig struct {
	// MaxRetries drops an operation after this many failed replays
	// 0 means retry forever
	MaxRetries int `mapstructure:"max_retries"`
	// CountRetries increments RetryCount on each failed replay.
	// Implied by MaxRetries > 0.
	CountRetries bool `mapstructure:"count_retries"`
	// SyncSchedule is an optional cron spec (6 fields) that triggers a
	// periodic sync in addition to connectivity events. Empty disables it.
	SyncSchedule string `mapstructure:"sync_schedule"`
}

// Config is the configuration shared by the concrete adapters.
type Config struct {
	// BaseURL of the REST backend (required by the REST adapter)
	BaseURL string `mapstructure:"base_url"`
	// Headers applied to every REST request
	Headers map[string]string `mapstructure:"headers"`
	// Timeout per backend call
	// default: 10 * time.Second
	Timeout time.Duration `mapstructure:"timeout"`
	// CacheTTL for entries in the durable response cache
	// default: 5 * time.Minute
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// Namespace prefixes every cache and queue key so adapters sharing one
	// store stay isolated
	// default: "datakit"
	Namespace string `mapstructure:"namespace"`
	// DisableOffline starts the adapter with offline queueing turned off;
	// writes issued while unreachable then fail instead of queueing.
	// EnableOfflineMode flips this at runtime.
	DisableOffline bool `mapstructure:"disable_offline"`
	// PartialBatch lets the batch fallback path return per-item results
	// instead of failing the whole batch on the first error
	PartialBatch bool `mapstructure:"partial_batch"`
	// Replay tunes offline queue retry bookkeeping
	Replay ReplayConfig `mapstructure:"replay"`

	// Documents overrides the factory's default document store for the
	// document adapter (required by one of the two)
	Documents docstore.Store `mapstructure:"-"`
}

// DefaultConfig returns the default adapter configuration
func DefaultConfig() *Config {
	return &Config{
		Timeout:   10 * time.Second,
		CacheTTL:  5 * time.Minute,
		Namespace: "datakit",
	}
}

// MergeDefaults fills zero fields with default values and returns the config
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = defaults.CacheTTL
	}
	if c.Namespace == "" {
		c.Namespace = defaults.Namespace
	}
	return c
}

// merge overlays the non-zero fields of other onto a copy of c.
// It is used by Configure and by the factory's default/call-site merging.
func (c *Config) merge(other *Config) *Config {
	merged := *c
	if other == nil {
		return &merged
	}
	if other.BaseURL != "" {
		merged.BaseURL = other.BaseURL
	}
	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(merged.Headers)+len(other.Headers))
		for k, v := range merged.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		merged.Headers = headers
	}
	if other.Timeout != 0 {
		merged.Timeout = other.Timeout
	}
	if other.CacheTTL != 0 {
		merged.CacheTTL = other.CacheTTL
	}
	if other.Namespace != "" {
		merged.Namespace = other.Namespace
	}
	if other.DisableOffline {
		merged.DisableOffline = true
	}
	if other.PartialBatch {
		merged.PartialBatch = true
	}
	if other.Replay != (ReplayConfig{}) {
		merged.Replay = other.Replay
	}
	if other.Documents != nil {
		merged.Documents = other.Documents
	}
	return &merged
}

// ValidateRest validates the fields the REST adapter requires
func (c *Config) ValidateRest() error {
	if c.BaseURL == "" {
		return ErrInvalidConfig("base_url is required for the rest adapter")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return ErrInvalidConfig("base_url must start with http:// or https://")
	}
	if c.Timeout <= 0 {
		return ErrInvalidConfig("timeout must be > 0")
	}
	return nil
}

// ValidateDocument validates the fields the document adapter requires
func (c *Config) ValidateDocument() error {
	if c.Documents == nil {
		return ErrInvalidConfig("document store is required for the document adapter")
	}
	return nil
}
