package connectivity

import "time"

// ProberConfig holds configuration for the HTTP connectivity probe
type ProberConfig struct {
	// URL is the endpoint probed with a HEAD request (required)
	URL string `mapstructure:"url"`
	// Interval between probes
	// default: 30 * time.Second
	Interval time.Duration `mapstructure:"interval"`
	// Timeout for a single probe request
	// default: 5 * time.Second
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultProberConfig returns the default configuration for the prober
func DefaultProberConfig() *ProberConfig {
	return &ProberConfig{
		Interval: 30 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// MergeDefaults fills zero fields with default values and returns the config
func (c *ProberConfig) MergeDefaults() *ProberConfig {
	defaults := DefaultProberConfig()
	if c.Interval == 0 {
		c.Interval = defaults.Interval
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	return c
}

// Validate validates the configuration
func (c *ProberConfig) Validate() error {
	if c.URL == "" {
		return ErrInvalidConfig("url is required")
	}
	if c.Interval <= 0 {
		return ErrInvalidConfig("interval must be > 0")
	}
	if c.Timeout <= 0 {
		return ErrInvalidConfig("timeout must be > 0")
	}
	return nil
}
