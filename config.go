package tokenflow

import (
	"fmt"

	"github.com/viant/tokenflow/policy"
	"github.com/viant/tokenflow/runtime/navigator"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the engine configuration. The
// zero-value is useful; empty sections inherit their package defaults.
type Config struct {
	Navigator navigator.Config `json:"navigator" yaml:"navigator"`
	Policy    policy.Config    `json:"policy" yaml:"policy"`
	History   HistoryConfig    `json:"history" yaml:"history"`
}

// HistoryConfig selects the archive of ended instances. Path selects a bolt
// file, URL a directory on any afs storage; both empty keeps history in
// memory. ForgetArchived drops an instance from the runtime once its
// summary is archived.
type HistoryConfig struct {
	Path           string `json:"path,omitempty" yaml:"path,omitempty"`
	URL            string `json:"url,omitempty" yaml:"url,omitempty"`
	ForgetArchived bool   `json:"forgetArchived,omitempty" yaml:"forgetArchived,omitempty"`
}

// DefaultConfig returns a Config populated with package defaults.
func DefaultConfig() *Config {
	return &Config{
		Navigator: navigator.DefaultConfig(),
		Policy:    *policy.ToConfig(policy.Default()),
	}
}

// LoadConfig decodes YAML onto the default configuration.
func LoadConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	defaults := navigator.DefaultConfig()
	if c.Navigator.WorkerCount == 0 {
		c.Navigator.WorkerCount = defaults.WorkerCount
	}
	if c.Navigator.QueueBuffer == 0 {
		c.Navigator.QueueBuffer = defaults.QueueBuffer
	}
	if c.Navigator.RequeueMin == 0 {
		c.Navigator.RequeueMin = defaults.RequeueMin
	}
	if c.Navigator.RequeueMax == 0 {
		c.Navigator.RequeueMax = defaults.RequeueMax
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var err error
	if nErr := c.Navigator.Validate(); nErr != nil {
		err = multierr.Append(err, fmt.Errorf("navigator: %w", nErr))
	}
	if pErr := c.Policy.Validate(); pErr != nil {
		err = multierr.Append(err, fmt.Errorf("policy: %w", pErr))
	}
	if c.History.Path != "" && c.History.URL != "" {
		err = multierr.Append(err, fmt.Errorf("history: path and url are exclusive"))
	}
	return err
}
