package refiners

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/scope"
)

func TestKinds(t *testing.T) {
	assert.Equal(t, []string{
		"classification_analysis",
		"figures_of_merit",
		"fom",
		"histograms",
		"profiles",
		"pull_analysis",
		"scatters",
		"tree",
	}, Kinds())
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  RefinerConfig
	}{
		{"unknown kind", RefinerConfig{Kind: "pie_chart"}},
		{"unknown aggregation", RefinerConfig{Kind: "fom", Aggregation: "mode"}},
		{"unknown cut direction", RefinerConfig{Kind: "classification_analysis", CutDirection: "~"}},
		{"pull without parts", RefinerConfig{Kind: "pull_analysis"}},
		{"unknown tree format", RefinerConfig{Kind: "tree", Format: "root"}},
		{"unknown filter op", RefinerConfig{Kind: "histograms", Filter: &FilterConfig{On: "x", Op: "~="}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), "got %v", err)
		})
	}
}

const declared = `
kind: FOM
aggregation: sum
key: "{part_name}"
above_expert_level: 0
filter:
  on: pt
  op: ">"
  value: 1.5
groupby:
  - column: charge
  - column: ""
rename:
  pt: transverse_momentum
exclude: [eta]
folder_name: "figures/{groupby_addition}"
`

func TestBuildFromYAML(t *testing.T) {
	var cfg RefinerConfig
	require.NoError(t, yaml.Unmarshal([]byte(declared), &cfg))

	var printed bytes.Buffer
	r, err := Build(cfg, WithPrintTo(&printed))
	require.NoError(t, err)

	store := mustStore(t, map[string][]float64{
		"pt":     {1, 2, 3, 4},
		"eta":    {0, 0, 0, 0},
		"charge": {1, -1, 1, 1},
	})
	dir := scope.NewMemory()
	require.NoError(t, r.Refine(context.Background(), testModule, store, dir, Group{}))

	assert.Equal(t, []string{
		"figures/_groupby_charge_-1/trk_figures_of_merit_charge_-1.json",
		"figures/_groupby_charge_1/trk_figures_of_merit_charge_1.json",
		"figures/trk_figures_of_merit.json",
	}, dir.Artifacts())

	fom := artifact[FiguresOfMerit](t, dir, "figures/_groupby_charge_1/trk_figures_of_merit_charge_1.json")
	assert.Equal(t, []Figure{{Key: "transverse_momentum", Value: 7}}, fom.Figures)

	all := artifact[FiguresOfMerit](t, dir, "figures/trk_figures_of_merit.json")
	assert.Equal(t, []Figure{{Key: "transverse_momentum", Value: 9}}, all.Figures, "rename projects onto the renamed columns")
	assert.Contains(t, printed.String(), "transverse_momentum")
	assert.Zero(t, dir.Open())
}

func TestBuildGatedByExpertLevel(t *testing.T) {
	above := 2
	r, err := Build(RefinerConfig{Kind: "histograms", AboveExpertLevel: &above})
	require.NoError(t, err)

	dir := scope.NewMemory()
	require.NoError(t, r.Refine(context.Background(), testModule, mustStore(t, map[string][]float64{"x": {1}}), dir, Group{}))
	assert.Empty(t, dir.Artifacts())
}

func TestPredicate(t *testing.T) {
	parts := []float64{0, 1, 2, math.NaN(), math.Inf(1)}
	tests := []struct {
		op   string
		want []bool
	}{
		{"", []bool{false, true, true, true, true}},
		{"finite", []bool{true, true, true, false, false}},
		{"==", []bool{false, true, false, false, false}},
		{"!=", []bool{true, false, true, true, true}},
		{"<", []bool{true, false, false, false, false}},
		{"<=", []bool{true, true, false, false, false}},
		{">", []bool{false, false, true, false, true}},
		{">=", []bool{false, true, true, false, true}},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			pred, err := predicate(tt.op, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pred(parts))
		})
	}
}
