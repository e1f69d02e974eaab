// Package harvest runs the per-event harvesting lifecycle: pick objects of a
// collection, peel each into crop records, accumulate them and hand the
// finished crops to refiners.
//
// A host drives a Module through Initialize, Event (once per event) and
// Terminate:
//
//	m, err := harvest.New(harvest.Options{Foreach: "Tracks"}, source, peel,
//	    harvest.WithPick(func(t Track) bool { return t.Fitted }),
//	    harvest.WithRefiner[Track]("tree", &refiners.SaveTree{}),
//	)
//	if err := m.Initialize(ctx); err != nil { ... }
//	for events.Next() {
//	    if err := m.Event(ctx); err != nil { ... }
//	}
//	err = m.Terminate(ctx)
package harvest

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/harvest/pkg/crops"
	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/logger"
	"github.com/ajitpratap0/harvest/pkg/metrics"
	"github.com/ajitpratap0/harvest/pkg/observability"
	"github.com/ajitpratap0/harvest/pkg/refiners"
)

// ErrSkip is the conventional error a peeler returns to drop an object.
var ErrSkip = stderrors.New("skip object")

// Source is the host boundary: the named per-event collections.
type Source[T any] interface {
	// Has reports whether the host provides the named collection.
	Has(name string) bool
	// Collection returns the objects of the named collection for the
	// current event.
	Collection(ctx context.Context, name string) ([]T, error)
}

// Peeler extracts the crop record of one object. Returning an error drops
// the object.
type Peeler[T any] func(T) (crops.Record, error)

type state int

const (
	stateNew state = iota
	stateInitialized
	stateTerminated
)

type namedRefiner struct {
	name    string
	refiner refiners.Refiner
}

// Stats counts what a module has seen.
type Stats struct {
	Events           int
	Objects          int
	Picked           int
	Rejected         int
	Skipped          int
	Crops            int
	RefinerSuccesses int
	RefinerFailures  int
}

// Module harvests one collection. It is not safe for concurrent use; the
// host calls it from its event loop.
type Module[T any] struct {
	opts     Options
	source   Source[T]
	peel     Peeler[T]
	pick     func(T) bool
	prepare  func(ctx context.Context) error
	declared []namedRefiner
	adhoc    []namedRefiner
	log      *zap.Logger

	state state
	barn  *crops.Barn
	store *crops.Store
	stats Stats
}

// New creates a module harvesting opts.Foreach from source with peel.
func New[T any](opts Options, source Source[T], peel Peeler[T], options ...Option[T]) (*Module[T], error) {
	if opts.Foreach == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "foreach collection is required")
	}
	if source == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "source is required")
	}
	if peel == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "peeler is required")
	}
	opts.applyDefaults()

	m := &Module[T]{opts: opts, source: source, peel: peel}
	for _, o := range options {
		o(m)
	}
	if m.log == nil {
		m.log = logger.Get()
	}
	m.log = m.log.With(zap.String("module", opts.Name))
	return m, nil
}

// Name returns the module name.
func (m *Module[T]) Name() string { return m.opts.Name }

// ID returns the module id used in artifact names.
func (m *Module[T]) ID() string { return m.opts.ID }

// Title returns the module title.
func (m *Module[T]) Title() string { return m.opts.Title }

// Contact returns the module contact.
func (m *Module[T]) Contact() string { return m.opts.Contact }

// ExpertLevel returns the module expert level.
func (m *Module[T]) ExpertLevel() int { return *m.opts.ExpertLevel }

// Foreach returns the harvested collection name.
func (m *Module[T]) Foreach() string { return m.opts.Foreach }

// AddRefiner appends an ad-hoc refiner. Ad-hoc refiners run after declared
// ones, in the order they were added.
func (m *Module[T]) AddRefiner(name string, r refiners.Refiner) {
	m.adhoc = append(m.adhoc, namedRefiner{name: name, refiner: r})
}

// Refiners lists the names of all refiners in run order.
func (m *Module[T]) Refiners() []string {
	names := make([]string, 0, len(m.declared)+len(m.adhoc))
	for _, r := range m.declared {
		names = append(names, r.name)
	}
	for _, r := range m.adhoc {
		names = append(names, r.name)
	}
	return names
}

// Crops returns the finalized crops; nil before Terminate or after an empty
// run.
func (m *Module[T]) Crops() *crops.Store { return m.store }

// Stats returns the counters of the current run.
func (m *Module[T]) Stats() Stats { return m.stats }

// Initialize starts a run. An unknown collection is a configuration fault.
func (m *Module[T]) Initialize(ctx context.Context) error {
	if !m.source.Has(m.opts.Foreach) {
		return errors.Newf(errors.ErrorTypeConfig, "unknown collection %q", m.opts.Foreach).
			WithDetail("module", m.opts.Name)
	}
	m.barn = crops.NewBarn()
	m.store = nil
	m.stats = Stats{}
	m.state = stateInitialized
	m.log.Debug("initialized harvesting module", zap.String("foreach", m.opts.Foreach))
	return nil
}

// Event harvests the current event. Only accumulation faults and failures to
// fetch the collection are returned; objects that cannot be picked or peeled
// are dropped.
func (m *Module[T]) Event(ctx context.Context) error {
	if m.state != stateInitialized {
		return errors.New(errors.ErrorTypeInternal, "event before initialize").
			WithDetail("module", m.opts.Name)
	}
	m.stats.Events++
	metrics.EventsProcessed.WithLabelValues(m.opts.Name).Inc()

	if m.prepare != nil {
		if err := m.prepare(ctx); err != nil {
			m.log.Warn("prepare failed, skipping event",
				zap.Int("event", m.stats.Events), zap.Error(err))
			return nil
		}
	}

	objects, err := m.source.Collection(ctx, m.opts.Foreach)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeExtraction, "failed to fetch collection").
			WithDetail("collection", m.opts.Foreach)
	}

	for _, obj := range objects {
		m.stats.Objects++
		if !m.picked(obj) {
			m.stats.Rejected++
			metrics.ObjectsSeen.WithLabelValues(m.opts.Name, metrics.OutcomeRejected).Inc()
			continue
		}
		m.stats.Picked++
		metrics.ObjectsSeen.WithLabelValues(m.opts.Name, metrics.OutcomePicked).Inc()

		if err := m.harvest(obj); err != nil {
			if errors.IsFatal(err) {
				return err
			}
			m.stats.Skipped++
			metrics.ObjectsSeen.WithLabelValues(m.opts.Name, metrics.OutcomeSkipped).Inc()
			m.log.Debug("dropped object", zap.Int("event", m.stats.Events), zap.Error(err))
		}
	}
	return nil
}

// picked applies the selection predicate; a panicking predicate rejects.
func (m *Module[T]) picked(obj T) (ok bool) {
	if m.pick == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Debug("pick panicked", zap.Any("panic", r))
			ok = false
		}
	}()
	return m.pick(obj)
}

// harvest peels obj and pushes its records. Extraction faults, including
// panics in the peeler or a lazy sequence, are returned as non-fatal errors.
func (m *Module[T]) harvest(obj T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrorTypeExtraction, "peel panicked: %v", r)
		}
	}()

	rec, perr := m.peel(obj)
	if perr != nil {
		return errors.Wrap(perr, errors.ErrorTypeExtraction, "peel failed")
	}
	if rec == nil {
		return errors.Wrap(ErrSkip, errors.ErrorTypeExtraction, "peel returned no record")
	}

	if seq, ok := rec.(crops.Sequence); ok {
		// The whole sequence is drained before pushing so a fault part way
		// through drops every row of the object.
		var rows []crops.Fields
		for fields := range seq {
			rows = append(rows, fields)
		}
		for _, fields := range rows {
			if err := m.push(fields); err != nil {
				return err
			}
		}
		return nil
	}
	return m.push(rec)
}

func (m *Module[T]) push(rec crops.Record) error {
	if err := m.barn.Push(rec); err != nil {
		return err
	}
	m.stats.Crops++
	metrics.CropsAccumulated.WithLabelValues(m.opts.Name).Inc()
	return nil
}

// Terminate finalizes the crops and runs every refiner. Refiner failures and
// panics are logged and counted but never returned; an empty run skips
// refinement.
func (m *Module[T]) Terminate(ctx context.Context) error {
	if m.state == stateTerminated {
		return errors.New(errors.ErrorTypeInternal, "terminate called twice").
			WithDetail("module", m.opts.Name)
	}
	m.state = stateTerminated

	if m.barn != nil {
		m.store = m.barn.Close()
	}
	if m.store == nil {
		m.log.Info("no crops harvested, skipping refiners", zap.Int("events", m.stats.Events))
		return nil
	}

	ctx = context.WithValue(ctx, logger.ModuleKey, m.opts.Name)
	ctx, span := observability.StartSpan(ctx, "harvest.terminate")
	span.SetAttribute("module", m.opts.Name)
	span.SetAttribute("crops", m.store.Len())
	span.SetAttribute("refiners", m.Refiners())
	defer span.End()

	m.log.Info("refining crops",
		zap.Int("rows", m.store.Len()),
		zap.Strings("columns", m.store.SortedNames()),
		zap.Int("refiners", len(m.declared)+len(m.adhoc)))

	for _, list := range [][]namedRefiner{m.declared, m.adhoc} {
		for _, r := range list {
			if ctx.Err() != nil {
				m.log.Warn("terminate cancelled, skipping remaining refiners", zap.Error(ctx.Err()))
				span.Finish(ctx.Err())
				return nil
			}
			m.refine(ctx, r)
		}
	}
	span.Finish(nil)
	return nil
}

func (m *Module[T]) refine(ctx context.Context, r namedRefiner) {
	ctx = context.WithValue(ctx, logger.RefinerKey, r.name)
	ctx, span := observability.StartSpan(ctx, "harvest.refine")
	span.SetAttribute("refiner", r.name)
	defer span.End()

	timer := metrics.NewTimer(r.name)
	err := m.safeRefine(ctx, r.refiner)
	metrics.RefineDuration.WithLabelValues(m.opts.Name, r.name).Observe(timer.Stop().Seconds())
	span.Finish(err)

	if err != nil {
		m.stats.RefinerFailures++
		metrics.RefinerRuns.WithLabelValues(m.opts.Name, r.name, metrics.StatusFailure).Inc()
		m.log.Warn("refiner failed", zap.String("refiner", r.name), zap.Error(err))
		return
	}
	m.stats.RefinerSuccesses++
	metrics.RefinerRuns.WithLabelValues(m.opts.Name, r.name, metrics.StatusSuccess).Inc()
}

func (m *Module[T]) safeRefine(ctx context.Context, r refiners.Refiner) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.New(errors.ErrorTypeRefinement, fmt.Sprintf("refiner panicked: %v", p))
		}
	}()
	return r.Refine(ctx, m, m.store, m.opts.Output, refiners.Group{})
}
