package runlet

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/runlet/runlet/service/messaging"
	"github.com/runlet/runlet/service/pool"
)

// Config is a serialisable representation of the scheduler configuration. It
// can be populated from YAML or JSON; the zero value is useful since nested
// fields inherit their package defaults.
type Config struct {
	Pool   pool.Config  `json:"pool" yaml:"pool"`
	Events EventsConfig `json:"events" yaml:"events"`
}

// EventsConfig controls the optional lifecycle event queue.
type EventsConfig struct {
	// Vendor selects the queue implementation; empty disables events.
	Vendor messaging.Vendor `json:"vendor,omitempty" yaml:"vendor,omitempty"`

	// BaseURL is the state location for the fs vendor.
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
}

// DefaultConfig returns a Config populated with package defaults.
func DefaultConfig() *Config {
	return &Config{
		Pool: pool.DefaultConfig(),
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Pool.WorkerCount <= 0 {
		return fmt.Errorf("pool.workers must be > 0")
	}
	if c.Events.Vendor == messaging.VendorFS && c.Events.BaseURL == "" {
		return fmt.Errorf("events.baseURL is required for the fs vendor")
	}
	return nil
}

// LoadConfig reads a YAML configuration from the given afs URL (file path,
// embed:// or any other scheme afs supports) over package defaults.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", URL, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
