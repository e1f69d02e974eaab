package refiners

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	values := Values{"module.id": "trk", "part_name": "pt", "empty": ""}
	tests := []struct {
		template string
		want     string
	}{
		{"{module.id}_{part_name}_histogram", "trk_pt_histogram"},
		{"{module.id}{empty}", "trk"},
		{"{unknown}_{part_name}", "{unknown}_pt"},
		{"{{literal}} {part_name}", "{literal} pt"},
		{"unterminated {part_name", "unterminated {part_name"},
		{"no placeholders", "no placeholders"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.template, values), "Format(%q)", tt.template)
	}
}

func TestGroupValues(t *testing.T) {
	g := Group{Name: "status", Value: " = 1"}
	assert.Equal(t, "_status = 1", groupValues(Values{}, g, false)["groupby_key"])
	assert.Equal(t, " in group status = 1", groupValues(Values{}, g, true)["groupby_key"])
	assert.Equal(t, "", groupValues(Values{}, Group{}, true)["groupby_key"])

	base := Values{"module.id": "trk"}
	_ = groupValues(base, g, false)
	assert.Len(t, base, 1, "input values are not modified")
}

func TestModuleValues(t *testing.T) {
	v := moduleValues(testModule)
	assert.Equal(t, "trk", v["module.id"])
	assert.Equal(t, "1", v["module.expert_level"])
	assert.Empty(t, moduleValues(nil))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "nan", FormatValue(math.NaN()))
	assert.Equal(t, "inf", FormatValue(math.Inf(1)))
	assert.Equal(t, "-inf", FormatValue(math.Inf(-1)))
	assert.Equal(t, "0.5", FormatValue(0.5))
	assert.Equal(t, "3", FormatValue(3))
}
