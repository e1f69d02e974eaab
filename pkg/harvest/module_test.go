package harvest

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/harvest/pkg/crops"
	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/refiners"
	"github.com/ajitpratap0/harvest/pkg/scope"
)

type track struct {
	pt      float64
	charge  float64
	fitted  bool
	hits    []float64
	corrupt bool
}

// eventSource replays a fixed list of events of the "Tracks" collection.
type eventSource struct {
	events [][]track
	next   int
}

func (s *eventSource) Has(name string) bool { return name == "Tracks" }

func (s *eventSource) Collection(_ context.Context, name string) ([]track, error) {
	if name != "Tracks" {
		return nil, stderrors.New("no such collection")
	}
	ev := s.events[s.next]
	s.next++
	return ev, nil
}

func peelTrack(t track) (crops.Record, error) {
	if t.corrupt {
		return nil, ErrSkip
	}
	return crops.Fields{"pt": t.pt, "charge": t.charge}, nil
}

func run(t *testing.T, m *Module[track], events int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))
	for i := 0; i < events; i++ {
		require.NoError(t, m.Event(ctx))
	}
	require.NoError(t, m.Terminate(ctx))
}

func quietLogger() *zap.Logger { return zap.NewNop() }

func TestModuleAccumulatesInEventOrder(t *testing.T) {
	src := &eventSource{events: [][]track{
		{{pt: 1, charge: 1}, {pt: 2, charge: -1}},
		{},
		{{pt: 3, charge: 1}},
	}}
	m, err := New(Options{Foreach: "Tracks"}, src, peelTrack, WithLogger[track](quietLogger()))
	require.NoError(t, err)
	run(t, m, 3)

	store := m.Crops()
	require.NotNil(t, store)
	pt, err := store.Column("pt")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, pt)
	assert.Equal(t, Stats{Events: 3, Objects: 3, Picked: 3, Crops: 3}, m.Stats())
}

func TestModuleDefaults(t *testing.T) {
	m, err := New(Options{Foreach: "Tracks"}, &eventSource{}, peelTrack)
	require.NoError(t, err)
	assert.Equal(t, "Tracks", m.Name())
	assert.Equal(t, "Tracks", m.ID())
	assert.Equal(t, DefaultExpertLevel, m.ExpertLevel())

	_, err = New(Options{}, &eventSource{}, peelTrack)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestUnknownCollectionIsConfigFault(t *testing.T) {
	m, err := New(Options{Foreach: "Clusters"}, &eventSource{}, peelTrack)
	require.NoError(t, err)

	err = m.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.True(t, errors.IsFatal(err))
}

func TestPickAndSkip(t *testing.T) {
	src := &eventSource{events: [][]track{{
		{pt: 1, fitted: true},
		{pt: 2, fitted: false},
		{pt: 3, fitted: true, corrupt: true},
		{pt: 4, fitted: true},
	}}}
	m, err := New(Options{Foreach: "Tracks"}, src, peelTrack,
		WithPick(func(t track) bool { return t.fitted }),
		WithLogger[track](quietLogger()))
	require.NoError(t, err)
	run(t, m, 1)

	pt, err := m.Crops().Column("pt")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4}, pt)
	assert.Equal(t, Stats{Events: 1, Objects: 4, Picked: 3, Rejected: 1, Skipped: 1, Crops: 2}, m.Stats())
}

func TestPeelPanicDropsObject(t *testing.T) {
	src := &eventSource{events: [][]track{{{pt: 1}, {pt: -1}, {pt: 2}}}}
	peel := func(t track) (crops.Record, error) {
		if t.pt < 0 {
			panic("negative pt")
		}
		return crops.Scalar(t.pt), nil
	}
	m, err := New(Options{Foreach: "Tracks"}, src, peel, WithLogger[track](quietLogger()))
	require.NoError(t, err)
	run(t, m, 1)

	values, ok := m.Crops().Values()
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, values)
	assert.Equal(t, 1, m.Stats().Skipped)
}

func TestSequencesAreExpanded(t *testing.T) {
	src := &eventSource{events: [][]track{{
		{pt: 1, hits: []float64{10, 11}},
		{pt: 2},
		{pt: 3, hits: []float64{12}},
	}}}
	peel := func(t track) (crops.Record, error) {
		return crops.Sequence(func(yield func(crops.Fields) bool) {
			for _, h := range t.hits {
				if !yield(crops.Fields{"pt": t.pt, "hit": h}) {
					return
				}
			}
		}), nil
	}
	m, err := New(Options{Foreach: "Tracks"}, src, peel, WithLogger[track](quietLogger()))
	require.NoError(t, err)
	run(t, m, 1)

	hit, err := m.Crops().Column("hit")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12}, hit)
	pt, err := m.Crops().Column("pt")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 3}, pt)
}

func TestSequencePanicDropsEveryRowOfObject(t *testing.T) {
	src := &eventSource{events: [][]track{{{pt: 1, corrupt: true}, {pt: 2}}}}
	peel := func(t track) (crops.Record, error) {
		return crops.Sequence(func(yield func(crops.Fields) bool) {
			if !yield(crops.Fields{"pt": t.pt}) {
				return
			}
			if t.corrupt {
				panic("corrupt track")
			}
		}), nil
	}
	m, err := New(Options{Foreach: "Tracks"}, src, peel, WithLogger[track](quietLogger()))
	require.NoError(t, err)
	run(t, m, 1)

	pt, err := m.Crops().Column("pt")
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, pt)
	assert.Equal(t, 1, m.Stats().Skipped)
	assert.Equal(t, 1, m.Stats().Crops)
}

func TestModeMismatchIsFatal(t *testing.T) {
	src := &eventSource{events: [][]track{{{pt: 1}, {pt: 2}}}}
	peel := func(t track) (crops.Record, error) {
		if t.pt == 1 {
			return crops.Scalar(t.pt), nil
		}
		return crops.Fields{"pt": t.pt}, nil
	}
	m, err := New(Options{Foreach: "Tracks"}, src, peel, WithLogger[track](quietLogger()))
	require.NoError(t, err)
	require.NoError(t, m.Initialize(context.Background()))

	err = m.Event(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAccumulation))
}

func TestPrepareFailureSkipsEvent(t *testing.T) {
	src := &eventSource{events: [][]track{{{pt: 1}}, {{pt: 2}}}}
	calls := 0
	m, err := New(Options{Foreach: "Tracks"}, src, peelTrack,
		WithPrepare[track](func(context.Context) error {
			calls++
			if calls == 1 {
				return stderrors.New("lookup unavailable")
			}
			return nil
		}),
		WithLogger[track](quietLogger()))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Event(ctx))
	src.next = 1
	require.NoError(t, m.Event(ctx))
	require.NoError(t, m.Terminate(ctx))

	pt, err := m.Crops().Column("pt")
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, pt)
}

func TestRefinerIsolation(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	src := &eventSource{events: [][]track{{{pt: 1, charge: 1}}}}

	var ran []string
	record := func(name string) refiners.Refiner {
		return refiners.Func(func(_ context.Context, _ refiners.Module, _ *crops.Store, _ scope.Scope, _ refiners.Group) error {
			ran = append(ran, name)
			return nil
		})
	}
	missing := refiners.Func(func(_ context.Context, _ refiners.Module, store *crops.Store, _ scope.Scope, _ refiners.Group) error {
		ran = append(ran, "second")
		_, err := store.Column("q")
		return err
	})

	m, err := New(Options{Foreach: "Tracks"}, src, peelTrack,
		WithRefiner[track]("first", record("first")),
		WithRefiner[track]("second", missing),
		WithLogger[track](zap.New(core)))
	require.NoError(t, err)
	m.AddRefiner("third", record("third"))
	m.AddRefiner("panics", refiners.Func(func(context.Context, refiners.Module, *crops.Store, scope.Scope, refiners.Group) error {
		panic("boom")
	}))
	assert.Equal(t, []string{"first", "second", "third", "panics"}, m.Refiners())

	run(t, m, 1)

	assert.Equal(t, []string{"first", "second", "third"}, ran)
	assert.Equal(t, 2, m.Stats().RefinerSuccesses)
	assert.Equal(t, 2, m.Stats().RefinerFailures)

	failed := logs.FilterMessage("refiner failed").All()
	require.Len(t, failed, 2)
	assert.Equal(t, "second", failed[0].ContextMap()["refiner"])
	assert.Equal(t, "panics", failed[1].ContextMap()["refiner"])
}

func TestEmptyRunInvokesNoRefiners(t *testing.T) {
	called := false
	m, err := New(Options{Foreach: "Tracks"}, &eventSource{}, peelTrack,
		WithRefiner[track]("tree", refiners.Func(func(context.Context, refiners.Module, *crops.Store, scope.Scope, refiners.Group) error {
			called = true
			return nil
		})),
		WithLogger[track](quietLogger()))
	require.NoError(t, err)

	run(t, m, 0)
	assert.False(t, called)
	assert.Nil(t, m.Crops())

	assert.Error(t, m.Terminate(context.Background()), "terminate is single use")
}

func TestRefinersSeeModuleAndOutput(t *testing.T) {
	level := 3
	out := scope.NewMemory()
	src := &eventSource{events: [][]track{{{pt: 1}, {pt: math.NaN()}}}}

	var seen refiners.Module
	var dir scope.Scope
	m, err := New(Options{Foreach: "Tracks", ID: "trk", ExpertLevel: &level, Output: out}, src, peelTrack,
		WithRefiner[track]("probe", refiners.Func(func(_ context.Context, mod refiners.Module, _ *crops.Store, d scope.Scope, g refiners.Group) error {
			seen, dir = mod, d
			assert.False(t, g.Active())
			return nil
		})),
		WithLogger[track](quietLogger()))
	require.NoError(t, err)
	run(t, m, 1)

	require.NotNil(t, seen)
	assert.Equal(t, "trk", seen.ID())
	assert.Equal(t, 3, seen.ExpertLevel())
	assert.Same(t, out, dir)
}
