package config

import (
	"strings"
	"time"

	"github.com/ajitpratap0/harvest/pkg/compression"
	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/observability"
	"github.com/ajitpratap0/harvest/pkg/refiners"
	"github.com/ajitpratap0/harvest/pkg/scope"
)

// Config is the configuration of one harvest run.
type Config struct {
	// Module describes what is harvested
	Module ModuleConfig `yaml:"module" json:"module"`
	// Input describes where events come from
	Input InputConfig `yaml:"input" json:"input"`
	// Output describes where refiners write their artifacts
	Output OutputConfig `yaml:"output" json:"output"`
	// Refiners run in order at terminate
	Refiners []refiners.RefinerConfig `yaml:"refiners" json:"refiners"`
	// Logging configures the global logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	// Tracing configures OpenTelemetry spans
	Tracing observability.Config `yaml:"tracing" json:"tracing"`
}

// ModuleConfig describes a harvesting module.
type ModuleConfig struct {
	// Foreach names the per-event collection to harvest
	Foreach string `yaml:"foreach" json:"foreach"`
	// Name defaults to Foreach
	Name string `yaml:"name" json:"name"`
	// ID defaults to Name
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Contact     string `yaml:"contact" json:"contact"`
	ExpertLevel int    `yaml:"expert_level" json:"expert_level"`
	// Pick keeps only objects whose Pick field is truthy
	Pick string `yaml:"pick" json:"pick"`
	// Fields restricts the peeled fields; empty peels every numeric field
	Fields []string `yaml:"fields" json:"fields"`
}

// InputConfig describes the event source.
type InputConfig struct {
	// Events is a JSON-lines file, "-" for stdin
	Events string `yaml:"events" json:"events"`
	// MaxEvents stops the run early when positive
	MaxEvents int `yaml:"max_events" json:"max_events"`
	// Collections declares the catalogue up front; empty discovers it from
	// the first event
	Collections []string `yaml:"collections" json:"collections"`
}

// Output kinds.
const (
	OutputNone  = "none"
	OutputLocal = "local"
	OutputS3    = "s3"
	OutputGCS   = "gcs"
)

// OutputConfig describes the root output scope.
type OutputConfig struct {
	Kind string `yaml:"kind" json:"kind"`
	// Path is the local root directory or the bucket key prefix
	Path        string             `yaml:"path" json:"path"`
	S3          scope.S3Config     `yaml:"s3" json:"s3"`
	GCS         scope.GCSConfig    `yaml:"gcs" json:"gcs"`
	Compression compression.Config `yaml:"compression" json:"compression"`
	// Timeout bounds the whole terminate phase, zero means unbounded
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Encoding    string `yaml:"encoding" json:"encoding"`
	Development bool   `yaml:"development" json:"development"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		Module: ModuleConfig{
			ExpertLevel: 1,
		},
		Input: InputConfig{
			Events: "-",
		},
		Output: OutputConfig{
			Kind:        OutputLocal,
			Path:        "harvest-output",
			Compression: *compression.DefaultConfig(),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Tracing: observability.DefaultConfig(),
	}
}

// ApplyDefaults fills the fields derived from other fields.
func (c *Config) ApplyDefaults() {
	if c.Module.Name == "" {
		c.Module.Name = c.Module.Foreach
	}
	if c.Module.ID == "" {
		c.Module.ID = c.Module.Name
	}
	if c.Module.Title == "" {
		c.Module.Title = c.Module.Name
	}
	if c.Output.Kind == "" {
		c.Output.Kind = OutputLocal
	}
}

// Validate checks the configuration for values that would fail a run.
func (c *Config) Validate() error {
	if c.Module.Foreach == "" {
		return errors.New(errors.ErrorTypeConfig, "module.foreach is required")
	}
	if c.Input.MaxEvents < 0 {
		return errors.New(errors.ErrorTypeConfig, "input.max_events cannot be negative")
	}

	switch c.Output.Kind {
	case OutputNone:
	case OutputLocal:
		if c.Output.Path == "" {
			return errors.New(errors.ErrorTypeConfig, "output.path is required for local output")
		}
	case OutputS3:
		if c.Output.S3.Bucket == "" {
			return errors.New(errors.ErrorTypeConfig, "output.s3.bucket is required")
		}
	case OutputGCS:
		if c.Output.GCS.Bucket == "" {
			return errors.New(errors.ErrorTypeConfig, "output.gcs.bucket is required")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown output kind %q", c.Output.Kind)
	}
	if _, err := compression.NewCodec(&c.Output.Compression); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid output compression")
	}

	known := make(map[string]bool)
	for _, k := range refiners.Kinds() {
		known[k] = true
	}
	for i, r := range c.Refiners {
		if !known[strings.ToLower(strings.TrimSpace(r.Kind))] {
			return errors.Newf(errors.ErrorTypeConfig, "refiners[%d]: unknown kind %q", i, r.Kind).
				WithDetail("known", refiners.Kinds())
		}
	}
	return nil
}
