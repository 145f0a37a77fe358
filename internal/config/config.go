package config

import (
	"fmt"
	"os"
	"time"

	dserrors "github.com/systmms/rolecreds/internal/errors"
	"github.com/systmms/rolecreds/internal/logging"
	"github.com/systmms/rolecreds/internal/metrics"
	"github.com/systmms/rolecreds/internal/notify"
	"gopkg.in/yaml.v3"
)

// Dev invokers.
const (
	DevInvokerCLI = "cli"
	DevInvokerSDK = "sdk"
)

// STS bounds for assumed role session durations, in seconds.
const (
	MinDevDurationSeconds     = 900
	MaxDevDurationSeconds     = 43200
	DefaultDevDurationSeconds = 3600
)

// Config holds the runtime configuration
type Config struct {
	Path     string
	Logger   *logging.Logger
	Debug    bool
	NoColor  bool
	Settings *Settings

	// Env replaces the process environment when set.
	Env Source
}

// Source returns the environment layered over the settings file.
func (c *Config) Source() Source {
	env := c.Env
	if env == nil {
		env = Env()
	}
	if c.Settings == nil {
		return env
	}
	return Layered(env, c.Settings.Source())
}

// Settings is the rolecreds.yaml structure. Every field is optional.
type Settings struct {
	Version            int           `yaml:"version"`
	LeadTime           time.Duration `yaml:"lead_time,omitempty"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout,omitempty"`
	EndpointHost       string        `yaml:"endpoint_host,omitempty"`
	DevDurationSeconds int32         `yaml:"dev_duration_seconds,omitempty"`
	DevInvoker         string        `yaml:"dev_invoker,omitempty"`
	Region             string        `yaml:"region,omitempty"`
	Profile            string        `yaml:"profile,omitempty"`
	Metrics            MetricsConfig `yaml:"metrics,omitempty"`
	Notifications      Notifications `yaml:"notifications,omitempty"`
}

// MetricsConfig configures the metrics endpoint served by `watch`.
type MetricsConfig struct {
	Enabled              bool `yaml:"enabled"`
	metrics.ServerConfig `yaml:",inline"`
}

// Notifications configures lifecycle event delivery from `watch`.
type Notifications struct {
	QueueSize int                    `yaml:"queue_size,omitempty"`
	Webhooks  []notify.WebhookConfig `yaml:"webhooks,omitempty"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() *Settings {
	return &Settings{
		DevDurationSeconds: DefaultDevDurationSeconds,
		DevInvoker:         DevInvokerCLI,
		Metrics: MetricsConfig{
			ServerConfig: metrics.DefaultServerConfig(),
		},
	}
}

// Load reads the settings file. A missing file is not an error when the
// path was not set explicitly; the defaults are used instead.
func (c *Config) Load(explicit bool) error {
	settings := DefaultSettings()

	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			c.Settings = settings
			return nil
		}
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Key:        "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Check the --config flag or remove it to use defaults",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if err := settings.Validate(); err != nil {
		return err
	}

	c.Settings = settings
	return nil
}

// Validate checks value ranges.
func (s *Settings) Validate() error {
	if s.Version != 0 {
		return dserrors.ConfigError{
			Key:        "version",
			Value:      s.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of the file",
		}
	}
	if s.LeadTime < 0 {
		return dserrors.ConfigError{Key: "lead_time", Value: s.LeadTime, Message: "must not be negative"}
	}
	if s.FetchTimeout < 0 {
		return dserrors.ConfigError{Key: "fetch_timeout", Value: s.FetchTimeout, Message: "must not be negative"}
	}
	if s.DevDurationSeconds < MinDevDurationSeconds || s.DevDurationSeconds > MaxDevDurationSeconds {
		return dserrors.ConfigError{
			Key:        "dev_duration_seconds",
			Value:      s.DevDurationSeconds,
			Message:    "out of range",
			Suggestion: "STS sessions last between 900 and 43200 seconds",
		}
	}
	switch s.DevInvoker {
	case DevInvokerCLI, DevInvokerSDK:
	default:
		return dserrors.ConfigError{
			Key:        "dev_invoker",
			Value:      s.DevInvoker,
			Message:    "unknown dev invoker",
			Suggestion: "Use 'cli' or 'sdk'",
		}
	}
	if s.Notifications.QueueSize < 0 {
		return dserrors.ConfigError{Key: "notifications.queue_size", Value: s.Notifications.QueueSize, Message: "must not be negative"}
	}
	for i, w := range s.Notifications.Webhooks {
		if err := w.Validate(); err != nil {
			return dserrors.ConfigError{
				Key:     fmt.Sprintf("notifications.webhooks[%d]", i),
				Value:   w.Name,
				Message: err.Error(),
			}
		}
	}
	return nil
}

// Source exposes the settings that have environment equivalents, for use
// underneath the process environment in a Layered source.
func (s *Settings) Source() Source {
	m := Map{}
	if s.EndpointHost != "" {
		m[KeyEndpointHost] = s.EndpointHost
	}
	return m
}
