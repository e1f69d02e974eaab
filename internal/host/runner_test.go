package host

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/harvest/pkg/crops"
	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/harvest"
)

const events = `{"Tracks": [{"pt": 1, "charge": 1, "fitted": true}, {"pt": 2, "charge": -1, "fitted": false}]}
not json at all
{"Tracks": []}

{"Tracks": [{"pt": 3, "charge": 1, "fitted": true}], "Clusters": [{"e": 5}]}
`

func newModule(t *testing.T, src harvest.Source[Object], opts ...harvest.Option[Object]) *harvest.Module[Object] {
	t.Helper()
	opts = append(opts, harvest.WithLogger[Object](zap.NewNop()))
	m, err := harvest.New(harvest.Options{Foreach: "Tracks"}, src, FieldPeeler("pt", "charge"), opts...)
	require.NoError(t, err)
	return m
}

func TestRunnerHarvestsEveryEvent(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRunner(strings.NewReader(events), Config{Module: "Tracks"}, zap.New(core))
	m := newModule(t, r, harvest.WithPick(Truthy("fitted")))

	sum, err := r.Run(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Events)
	assert.Equal(t, 1, sum.Malformed)
	assert.Equal(t, StoppedEOF, sum.Stopped)
	assert.Len(t, logs.FilterMessage("skipping malformed event").All(), 1)

	pt, err := m.Crops().Column("pt")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, pt)
	assert.Equal(t, []string{"Tracks"}, r.Collections(), "catalogue comes from the first event")
}

func TestRunnerStopsAtMaxEvents(t *testing.T) {
	r := NewRunner(strings.NewReader(events), Config{MaxEvents: 1}, zap.NewNop())
	m := newModule(t, r)

	sum, err := r.Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, StoppedMaxEvents, sum.Stopped)
	assert.Equal(t, 1, sum.Events)
	assert.Equal(t, 2, m.Crops().Len())
}

func TestRunnerTerminatesAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(strings.NewReader(events), Config{}, zap.NewNop())
	m := newModule(t, r)

	sum, err := r.Run(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, StoppedCancelled, sum.Stopped)
	assert.Zero(t, sum.Events)
	assert.Nil(t, m.Crops())
	assert.Error(t, m.Terminate(context.Background()), "runner already terminated the module")
}

func TestRunnerUnknownCollection(t *testing.T) {
	r := NewRunner(strings.NewReader(events), Config{Collections: []string{"Clusters"}}, zap.NewNop())
	m := newModule(t, r)

	_, err := r.Run(context.Background(), m)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

type lifecycle struct {
	events    int
	failAt    int
	fatal     bool
	terminate bool
}

func (l *lifecycle) Initialize(context.Context) error { return nil }

func (l *lifecycle) Event(context.Context) error {
	l.events++
	if l.events != l.failAt {
		return nil
	}
	if l.fatal {
		return errors.New(errors.ErrorTypeAccumulation, "mode mismatch")
	}
	return errors.New(errors.ErrorTypeExtraction, "collection unavailable")
}

func (l *lifecycle) Terminate(context.Context) error {
	l.terminate = true
	return nil
}

func TestRunnerFaults(t *testing.T) {
	t.Run("fatal aborts without terminate", func(t *testing.T) {
		l := &lifecycle{failAt: 2, fatal: true}
		r := NewRunner(strings.NewReader(events), Config{}, zap.NewNop())
		sum, err := r.Run(context.Background(), l)
		require.Error(t, err)
		assert.True(t, errors.IsFatal(err))
		assert.False(t, l.terminate)
		assert.Equal(t, 1, sum.Events)
	})

	t.Run("non fatal continues", func(t *testing.T) {
		l := &lifecycle{failAt: 2}
		r := NewRunner(strings.NewReader(events), Config{}, zap.NewNop())
		sum, err := r.Run(context.Background(), l)
		require.NoError(t, err)
		assert.True(t, l.terminate)
		assert.Equal(t, 3, sum.Events)
	})
}

func TestFieldPeeler(t *testing.T) {
	t.Run("named fields", func(t *testing.T) {
		rec, err := FieldPeeler("pt", "eta")(Object{"pt": 2.5, "charge": 1.0})
		require.NoError(t, err)
		fields, ok := rec.(crops.Fields)
		require.True(t, ok)
		assert.Equal(t, 2.5, fields["pt"])
		assert.True(t, math.IsNaN(fields["eta"]))
		assert.NotContains(t, fields, "charge")
	})

	t.Run("all numeric fields", func(t *testing.T) {
		rec, err := FieldPeeler()(Object{"pt": 2.0, "fitted": true, "name": "trk", "seed": nil})
		require.NoError(t, err)
		assert.Equal(t, crops.Fields{"pt": 2, "fitted": 1}, rec)
	})

	t.Run("non numeric named field", func(t *testing.T) {
		_, err := FieldPeeler("name")(Object{"name": "trk"})
		assert.True(t, errors.IsType(err, errors.ErrorTypeExtraction))
	})

	t.Run("arrays expand", func(t *testing.T) {
		rec, err := FieldPeeler("pt", "hits", "layers")(Object{
			"pt":     4.0,
			"hits":   []any{1.0, 2.0, 3.0},
			"layers": []any{7.0},
		})
		require.NoError(t, err)
		seq, ok := rec.(crops.Sequence)
		require.True(t, ok)

		var rows []crops.Fields
		for row := range seq {
			rows = append(rows, row)
		}
		require.Len(t, rows, 3)
		assert.Equal(t, 4.0, rows[2]["pt"])
		assert.Equal(t, 3.0, rows[2]["hits"])
		assert.Equal(t, 7.0, rows[0]["layers"])
		assert.True(t, math.IsNaN(rows[1]["layers"]))
	})

	t.Run("nothing numeric skips", func(t *testing.T) {
		_, err := FieldPeeler()(Object{"name": "trk"})
		assert.ErrorIs(t, err, harvest.ErrSkip)
	})
}
