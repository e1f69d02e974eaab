package columnar

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/harvest/pkg/crops"
)

func sampleStore(t *testing.T) *crops.Store {
	t.Helper()
	barn := crops.NewBarn()
	require.NoError(t, barn.Push(crops.Fields{"pt": 1.5, "is_matched": 1}))
	require.NoError(t, barn.Push(crops.Fields{"pt": 2.5}))
	require.NoError(t, barn.Push(crops.Fields{"pt": 0.5, "is_matched": 0, "d0 [cm]": -0.1}))
	store := barn.Close()
	require.NotNil(t, store)
	return store
}

func TestWriteRead(t *testing.T) {
	store := sampleStore(t)

	for _, format := range []Format{Parquet, Arrow, Avro, JSONLines} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			rows, err := Write(&buf, store, &WriterConfig{Format: format, Compression: "snappy"})
			require.NoError(t, err)
			assert.Equal(t, 3, rows)

			back, err := Read(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, store.SortedNames(), back.SortedNames())
			assert.True(t, store.Equal(back), "undefined entries survive the round trip")
		})
	}
}

func TestWriteScalarStore(t *testing.T) {
	store := crops.FromValues([]float64{1, 2, math.NaN()})

	var buf bytes.Buffer
	_, err := Write(&buf, store, &WriterConfig{Format: Parquet, ScalarName: "chi2"})
	require.NoError(t, err)

	back, err := Read(&buf, Parquet)
	require.NoError(t, err)
	col, err := back.Column("chi2")
	require.NoError(t, err)
	assert.Equal(t, 3, len(col))
	assert.True(t, math.IsNaN(col[2]))
}

func TestWriteEmptyStore(t *testing.T) {
	store, err := crops.NewStore([]string{"x"}, map[string][]float64{"x": {}})
	require.NoError(t, err)

	var buf bytes.Buffer
	rows, err := Write(&buf, store, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rows)

	back, err := Read(&buf, Parquet)
	require.NoError(t, err)
	assert.Equal(t, 0, back.Len())
	assert.True(t, back.Has("x"))
}

func TestWriteErrors(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(&buf, nil, nil)
	assert.Error(t, err)

	_, err = Write(&buf, sampleStore(t), &WriterConfig{Format: "root"})
	assert.Error(t, err)
}

func TestAvroNames(t *testing.T) {
	assert.Equal(t, "d0__cm_", avroName("d0 [cm]"))
	assert.Equal(t, "_2nd", avroName("2nd"))
	assert.Equal(t, "_", avroName(""))

	store, err := crops.NewStore([]string{"a b", "a_b"}, map[string][]float64{"a b": {1}, "a_b": {2}})
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = Write(&buf, store, &WriterConfig{Format: Avro})
	assert.Error(t, err, "colliding Avro field names are rejected")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, Parquet, f)

	f, err = ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, JSONLines, f)

	_, err = ParseFormat("root")
	assert.Error(t, err)

	assert.Equal(t, ".arrow", GetFormatInfo(Arrow).FileExtension)
}
