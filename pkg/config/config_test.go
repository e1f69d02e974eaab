package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/refiners"
)

func refinerOfKind(kind string) refiners.RefinerConfig {
	return refiners.RefinerConfig{Kind: kind}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("HARVEST_TEST_A", "alpha")
	t.Setenv("HARVEST_TEST_EMPTY", "")

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${HARVEST_TEST_A}", "alpha"},
		{"x-${HARVEST_TEST_A}-${HARVEST_TEST_A}", "x-alpha-alpha"},
		{"${HARVEST_TEST_UNSET}", ""},
		{"${HARVEST_TEST_UNSET:-fallback}", "fallback"},
		{"${HARVEST_TEST_EMPTY:-fallback}", "fallback"},
		{"${HARVEST_TEST_A:-fallback}", "alpha"},
		{"${unterminated", "${unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, substituteEnvVars(tt.in))
		})
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
module:
  foreach: Tracks
  expert_level: 3
output:
  kind: none
refiners:
  - kind: tree
    format: avro
  - kind: histograms
    groupby:
      - column: is_matched
      - column: pt
        edges: [1, 2]
`), 0o644))

	cfg := Default()
	require.NoError(t, Load(path, cfg))
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Tracks", cfg.Module.Name)
	assert.Equal(t, "Tracks", cfg.Module.ID)
	assert.Equal(t, 3, cfg.Module.ExpertLevel)
	assert.Equal(t, "-", cfg.Input.Events)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.Len(t, cfg.Refiners, 2)
	assert.Equal(t, []float64{1, 2}, cfg.Refiners[1].GroupBy[1].Edges)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing foreach", func(c *Config) { c.Module.Foreach = "" }},
		{"negative max events", func(c *Config) { c.Input.MaxEvents = -1 }},
		{"unknown output", func(c *Config) { c.Output.Kind = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Output.Kind = OutputS3 }},
		{"gcs without bucket", func(c *Config) { c.Output.Kind = OutputGCS }},
		{"bad compression", func(c *Config) { c.Output.Compression.Algorithm = "rar" }},
		{"unknown refiner", func(c *Config) { c.Refiners[0].Kind = "plot3d" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Module.Foreach = "Tracks"
			cfg.Refiners = append(cfg.Refiners, refinerOfKind("tree"))
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"), Default())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Module.Foreach = "Tracks"
	require.NoError(t, Save(path, cfg))

	back := &Config{}
	require.NoError(t, Load(path, back))
	assert.Equal(t, "Tracks", back.Module.Foreach)
	assert.Equal(t, cfg.Output.Path, back.Output.Path)
}
