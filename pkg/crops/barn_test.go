package crops

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/harvest/pkg/errors"
)

var nan = math.NaN()

func columns(t *testing.T, s *Store) map[string][]float64 {
	t.Helper()
	out := make(map[string][]float64)
	for _, name := range s.Names() {
		col, err := s.Column(name)
		require.NoError(t, err)
		out[name] = col
	}
	return out
}

func TestBarn_MissingFieldsAreUndefined(t *testing.T) {
	barn := NewBarn()
	require.NoError(t, barn.Push(Fields{"x": 1}))
	require.NoError(t, barn.Push(Fields{"y": 2}))
	require.NoError(t, barn.Push(Fields{"x": 3, "y": 4}))

	store := barn.Close()
	require.NotNil(t, store)

	want := map[string][]float64{
		"x": {1, nan, 3},
		"y": {nan, 2, 4},
	}
	if diff := cmp.Diff(want, columns(t, store), cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("crops mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"x", "y"}, store.Names())
	assert.Equal(t, 3, store.Len())
}

func TestBarn_ColumnsStayAligned(t *testing.T) {
	records := []Fields{
		{"a": 1},
		{"b": 2, "c": 3},
		{},
		{"d": 4},
		{"a": 5, "d": 6},
	}

	barn := NewBarn()
	for _, r := range records {
		require.NoError(t, barn.Push(r))
	}
	assert.Equal(t, len(records), barn.Rows())

	store := barn.Close()
	require.NotNil(t, store)
	for name, col := range columns(t, store) {
		assert.Len(t, col, len(records), "column %s", name)
	}
}

func TestBarn_PreservesOrder(t *testing.T) {
	barn := NewBarn()
	for i := 0; i < 100; i++ {
		require.NoError(t, barn.Push(Fields{"i": float64(i)}))
	}
	col, err := barn.Close().Column("i")
	require.NoError(t, err)
	for i, v := range col {
		assert.Equal(t, float64(i), v)
	}
}

func TestBarn_NewKeysInOneRecordAreSorted(t *testing.T) {
	barn := NewBarn()
	require.NoError(t, barn.Push(Fields{"zeta": 1, "alpha": 2, "mu": 3}))
	require.NoError(t, barn.Push(Fields{"beta": 4}))

	store := barn.Close()
	assert.Equal(t, []string{"alpha", "mu", "zeta", "beta"}, store.Names())
	assert.Equal(t, []string{"alpha", "beta", "mu", "zeta"}, store.SortedNames())
}

func TestBarn_ScalarMode(t *testing.T) {
	barn := NewBarn()
	for _, v := range []float64{3, 1, 2} {
		require.NoError(t, barn.Push(Scalar(v)))
	}
	assert.Equal(t, ModeScalar, barn.Mode())

	store := barn.Close()
	require.NotNil(t, store)
	assert.True(t, store.IsScalar())

	values, ok := store.Values()
	require.True(t, ok)
	assert.Equal(t, []float64{3, 1, 2}, values)

	_, err := store.Column("x")
	assert.Error(t, err)
}

func TestBarn_ModeMismatchIsFatal(t *testing.T) {
	tests := []struct {
		name   string
		first  Record
		second Record
	}{
		{"fields then scalar", Fields{"x": 1}, Scalar(2)},
		{"scalar then fields", Scalar(1), Fields{"x": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			barn := NewBarn()
			require.NoError(t, barn.Push(tt.first))

			err := barn.Push(tt.second)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeAccumulation))
			assert.True(t, errors.IsFatal(err))
			assert.Equal(t, 1, barn.Rows())
		})
	}
}

func TestBarn_RejectsUnexpandedRecords(t *testing.T) {
	barn := NewBarn()
	assert.Error(t, barn.Push(nil))
	assert.Error(t, barn.Push(Each(Fields{"x": 1})))
	assert.Equal(t, ModeUnset, barn.Mode())
}

func TestBarn_EmptyCloseReturnsNil(t *testing.T) {
	barn := NewBarn()
	assert.Nil(t, barn.Close())
}

func TestBarn_PushAfterClose(t *testing.T) {
	barn := NewBarn()
	require.NoError(t, barn.Push(Scalar(1)))
	require.NotNil(t, barn.Close())

	err := barn.Push(Scalar(2))
	assert.True(t, errors.IsType(err, errors.ErrorTypeAccumulation))
	assert.Nil(t, barn.Close())
}

func TestEach_StopsWhenConsumerStops(t *testing.T) {
	seen := 0
	for range Each(Fields{"a": 1}, Fields{"a": 2}, Fields{"a": 3}) {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}
