package config

import (
	"fmt"
	"time"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogText LogFormat = "text"
	LogJSON LogFormat = "json"
)

// Duration is a time.Duration written as "30s" in YAML and environment
// variables.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// UnmarshalText parses a duration string such as "1m30s".
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// Config is the top-level apiview configuration, corresponding to .apiview.yml.
type Config struct {
	IndexURL        string    `yaml:"index_url" koanf:"index_url"`
	Port            int       `yaml:"port" koanf:"port"`
	SiteName        string    `yaml:"site_name" koanf:"site_name"`
	LogFormat       LogFormat `yaml:"log_format" koanf:"log_format"`
	Include         []string  `yaml:"include" koanf:"include"`
	Exclude         []string  `yaml:"exclude" koanf:"exclude"`
	FetchTimeout    Duration  `yaml:"fetch_timeout" koanf:"fetch_timeout"`
	SessionTTL      Duration  `yaml:"session_ttl" koanf:"session_ttl"`
	DataDir         string    `yaml:"data_dir" koanf:"data_dir"`
	AllowAllOrigins bool      `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// DefaultConfigFile is the config file read when --config is not given.
const DefaultConfigFile = ".apiview.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		IndexURL:     "documents.json",
		Port:         8080,
		SiteName:     "API documents",
		LogFormat:    LogText,
		Include:      []string{"**"},
		FetchTimeout: Duration(30 * time.Second),
		SessionTTL:   Duration(12 * time.Hour),
		DataDir:      ".apiview",
	}
}
