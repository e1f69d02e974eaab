package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/harvest/internal/host"
	"github.com/ajitpratap0/harvest/pkg/config"
	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/refiners"
	"github.com/ajitpratap0/harvest/pkg/scope"
)

const tracksConfig = `
module:
  foreach: Tracks
  id: trk
  contact: ${HARVEST_TEST_CONTACT:-tracking@example.org}
  pick: fitted
  fields: [pt, charge]
output:
  kind: none
refiners:
  - kind: figures_of_merit
    aggregation: mean
  - kind: histograms
    bins: 4
    select: [pt]
    groupby:
      - column: charge
`

const tracksEvents = `{"Tracks": [{"pt": 1, "charge": 1, "fitted": true}, {"pt": 2, "charge": -1, "fitted": true}]}
{"Tracks": [{"pt": 3, "charge": 1, "fitted": false}, {"pt": 4, "charge": 1, "fitted": true}]}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harvest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigOverrides(t *testing.T) {
	v := viper.New()
	v.Set("config", writeConfig(t, tracksConfig))
	v.Set("events", "events.jsonl")
	v.Set("max-events", 10)
	v.Set("log-level", "debug")

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "events.jsonl", cfg.Input.Events)
	assert.Equal(t, 10, cfg.Input.MaxEvents)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "Tracks", cfg.Module.Name)
	assert.Equal(t, "tracking@example.org", cfg.Module.Contact)
	assert.Len(t, cfg.Refiners, 2)
}

func TestLoadConfigRejectsUnknownRefiner(t *testing.T) {
	v := viper.New()
	v.Set("config", writeConfig(t, "module: {foreach: Tracks}\nrefiners: [{kind: bogus}]\n"))

	_, err := loadConfig(v)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestBuildModuleRunsConfiguredRefiners(t *testing.T) {
	v := viper.New()
	v.Set("config", writeConfig(t, tracksConfig))
	cfg, err := loadConfig(v)
	require.NoError(t, err)

	out := scope.NewMemory()
	var printed bytes.Buffer
	runner := host.NewRunner(strings.NewReader(tracksEvents), host.Config{Module: "Tracks"}, zap.NewNop())
	m, err := buildModule(cfg, runner, out, &printed, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"figures_of_merit_0", "histograms_1"}, m.Refiners())

	sum, err := runner.Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Events)
	assert.Equal(t, 3, m.Stats().Crops)
	assert.Zero(t, m.Stats().RefinerFailures)

	raw, ok := out.Artifact("trk_figures_of_merit.json")
	require.True(t, ok, "artifacts: %v", out.Artifacts())
	var fom refiners.FiguresOfMerit
	require.NoError(t, json.Unmarshal(raw, &fom))
	assert.Equal(t, "tracking@example.org", fom.Contact)
	require.Len(t, fom.Figures, 2)

	assert.Contains(t, printed.String(), "mean_pt")
	assert.Contains(t, out.Artifacts(), "_groupby_charge_1/trk_pt_histogram_in_group_charge_1.json")
	assert.Contains(t, out.Artifacts(), "_groupby_charge_-1/trk_pt_histogram_in_group_charge_-1.json")
	assert.Zero(t, out.Open())
}

func TestOpenOutput(t *testing.T) {
	none, err := openOutput(context.Background(), config.OutputConfig{Kind: config.OutputNone})
	require.NoError(t, err)
	assert.Nil(t, none)

	dir := t.TempDir()
	local, err := openOutput(context.Background(), config.OutputConfig{Kind: config.OutputLocal, Path: dir})
	require.NoError(t, err)
	w, err := local.Create("probe.json")
	require.NoError(t, err)
	_, err = w.Write([]byte("{}"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, local.Close())
	assert.FileExists(t, filepath.Join(dir, "probe.json"))

	_, err = openOutput(context.Background(), config.OutputConfig{Kind: "ftp"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRefinersCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"refiners"})
	require.NoError(t, root.Execute())

	for _, kind := range refiners.Kinds() {
		assert.Contains(t, out.String(), "  - "+kind+"\n")
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Harvest v"+version)
}
