// Package config loads the optional YAML policy file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/erazemk/najdeno/internal/moderation"
)

// Classifier configures the photo classification endpoint. An empty URL
// disables photo scoring.
type Classifier struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Feed configures the public feed.
type Feed struct {
	Window    time.Duration `yaml:"window"`
	PageSize  int           `yaml:"page_size"`
	CacheSize int           `yaml:"cache_size"`
}

// Config is the policy file.
type Config struct {
	Moderation moderation.Policy `yaml:"moderation"`
	Classifier Classifier        `yaml:"classifier"`
	Feed       Feed              `yaml:"feed"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Moderation: moderation.DefaultPolicy(),
		Classifier: Classifier{Timeout: 5 * time.Second},
		Feed: Feed{
			Window:    7 * 24 * time.Hour,
			PageSize:  50,
			CacheSize: 1000,
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := Decode(bytes.NewReader(data), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r into cfg and validates the result. Unknown keys
// are rejected.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return cfg.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := c.Moderation.Validate(); err != nil {
		return err
	}
	if c.Classifier.Timeout <= 0 {
		return fmt.Errorf("classifier timeout must be positive, got %s", c.Classifier.Timeout)
	}
	if c.Feed.Window < 0 || c.Feed.PageSize < 0 {
		return errors.New("feed window and page size must not be negative")
	}
	return nil
}
