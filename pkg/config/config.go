// Package config loads and validates the hookmill orchestrator
// configuration from YAML.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level orchestrator configuration.
type Config struct {
	// Applier selects the apply mechanism by registry name.
	Applier string `yaml:"applier" validate:"required"`

	// Hooks configures hook execution.
	Hooks HooksConfig `yaml:"hooks"`

	// Policy configures hook admission policies.
	Policy PolicyConfig `yaml:"policy"`

	// Store configures the operation history store.
	Store StoreConfig `yaml:"store"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures distributed tracing.
	Tracing TracingConfig `yaml:"tracing"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `yaml:"metrics"`
}

// HooksConfig configures hook execution timing and annotation handling.
type HooksConfig struct {
	// PollInterval is the delay between readiness polls for
	// run-to-completion hooks.
	PollInterval Duration `yaml:"poll_interval" validate:"gt=0"`

	// Timeout is the per-hook deadline for reaching a terminal state.
	Timeout Duration `yaml:"timeout" validate:"gt=0"`

	// StrictAnnotations rejects a manifest's whole hook binding when its
	// annotation carries an unrecognized phase, instead of the default
	// permissive-ignore policy.
	StrictAnnotations bool `yaml:"strict_annotations"`
}

// PolicyConfig configures the hook admission policy engine.
type PolicyConfig struct {
	// Enabled turns policy evaluation on.
	Enabled bool `yaml:"enabled"`

	// Paths lists Rego policy files or directories to load.
	Paths []string `yaml:"paths"`

	// Watch reloads policies when files under Paths change.
	Watch bool `yaml:"watch"`
}

// StoreConfig configures the SQLite operation history store.
type StoreConfig struct {
	// Enabled turns history recording on.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	Path string `yaml:"path" validate:"required_if=Enabled true"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level.
	Level string `yaml:"level" validate:"oneof=trace debug info warn error"`

	// Format specifies the log format (console, json).
	Format string `yaml:"format" validate:"oneof=console json"`
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	Enabled bool `yaml:"enabled"`

	// Exporter specifies the trace exporter (otlp, stdout, none).
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`

	// Endpoint is the OTLP exporter endpoint.
	Endpoint string `yaml:"endpoint"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled turns metrics collection on.
	Enabled bool `yaml:"enabled"`

	// Listen is the metrics HTTP listen address (e.g. ":9090").
	Listen string `yaml:"listen"`
}

// Default returns the configuration defaults applied before validation.
func Default() *Config {
	return &Config{
		Applier: "memory",
		Hooks: HooksConfig{
			PollInterval: Duration(2 * time.Second),
			Timeout:      Duration(5 * time.Minute),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingConfig{
			Exporter: "none",
		},
	}
}
