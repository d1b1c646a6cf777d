package config

import (
	"fmt"
	"time"
)

// Config represents an rlfeed.yaml configuration file.
// All values are optional and act as defaults for rlfeed run flags.
// CLI flags always override config values.
type Config struct {
	// Client is the client configuration: inline JSON, or @path.
	Client      string        `yaml:"client"`
	LogLevel    string        `yaml:"log_level"`
	RunID       string        `yaml:"run_id"`
	MetricsAddr string        `yaml:"metrics_addr"`
	MaxLineSize int           `yaml:"max_line_size"`
	Adapter     AdapterConfig `yaml:"adapter"`
}

// AdapterConfig holds completion notification settings.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Backoff Duration          `yaml:"backoff,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Adapter types.
const (
	AdapterWebhook = "webhook"
	AdapterRedis   = "redis"
)

// Validate checks the adapter type when one is set.
func (a *AdapterConfig) Validate() error {
	switch a.Type {
	case "":
		return nil
	case AdapterWebhook, AdapterRedis:
		if a.URL == "" {
			return fmt.Errorf("adapter %s requires url", a.Type)
		}
		return nil
	default:
		return fmt.Errorf("unknown adapter type %q (want %s or %s)", a.Type, AdapterWebhook, AdapterRedis)
	}
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
