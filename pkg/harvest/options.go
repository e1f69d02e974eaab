package harvest

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/harvest/pkg/refiners"
	"github.com/ajitpratap0/harvest/pkg/scope"
)

// DefaultExpertLevel is the expert level of a module that does not set one.
const DefaultExpertLevel = 1

// Options names a harvesting module and the collection it harvests.
type Options struct {
	// Name defaults to Foreach
	Name string
	// Foreach is the per-event collection handed to the peeler
	Foreach string
	// ID defaults to Name and is used in artifact names
	ID      string
	Title   string
	Contact string
	// ExpertLevel defaults to DefaultExpertLevel when nil
	ExpertLevel *int
	// Output is the root scope of refiner artifacts; nil writes nothing
	Output scope.Scope
}

func (o *Options) applyDefaults() {
	if o.Name == "" {
		o.Name = o.Foreach
	}
	if o.ID == "" {
		o.ID = o.Name
	}
	if o.Title == "" {
		o.Title = o.Name
	}
	if o.ExpertLevel == nil {
		level := DefaultExpertLevel
		o.ExpertLevel = &level
	}
}

// Option customizes a Module.
type Option[T any] func(*Module[T])

// WithPick installs the selection predicate. Objects it rejects are never
// peeled.
func WithPick[T any](pick func(T) bool) Option[T] {
	return func(m *Module[T]) { m.pick = pick }
}

// WithPrepare installs a hook that runs at the start of every event, before
// the collection is fetched.
func WithPrepare[T any](prepare func(ctx context.Context) error) Option[T] {
	return func(m *Module[T]) { m.prepare = prepare }
}

// WithRefiner declares a refiner of the module. Declared refiners run before
// refiners added with AddRefiner, in declaration order.
func WithRefiner[T any](name string, r refiners.Refiner) Option[T] {
	return func(m *Module[T]) {
		m.declared = append(m.declared, namedRefiner{name: name, refiner: r})
	}
}

// WithLogger replaces the global logger for this module.
func WithLogger[T any](log *zap.Logger) Option[T] {
	return func(m *Module[T]) { m.log = log }
}
