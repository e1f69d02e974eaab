// Package refiners post-processes the crops of a harvest run.
//
// A Refiner receives the finalized crops, an output scope and the active
// group. Decorators (Select, Filter, GroupBy, Cd, ExpertLevel) wrap exactly
// one refiner and narrow the crops, partition them, move the output scope or
// gate execution before delegating. Output refiners turn crops into artifacts:
// trees, histograms, profiles, scatters, figures of merit and analyses.
//
// Basic usage:
//
//	hist := refiners.With(&refiners.SaveHistograms{}, refiners.Context{
//	    GroupBy: []refiners.GroupSpec{refiners.ByValue("is_matched")},
//	    Select:  crops.Selection{Names: []string{"pt", "is_matched"}},
//	})
//	err := hist.Refine(ctx, module, store, dir, refiners.Group{})
package refiners

import (
	"context"

	"github.com/ajitpratap0/harvest/pkg/crops"
	"github.com/ajitpratap0/harvest/pkg/scope"
)

// Module is the read-only view of a harvesting module that refiners use for
// naming and gating.
type Module interface {
	ID() string
	Title() string
	Contact() string
	ExpertLevel() int
}

// Group is the partition a refiner is invoked for. The zero value means the
// crops are not grouped.
type Group struct {
	Name  string
	Value string
}

// Active reports whether a GroupBy partition is in effect.
func (g Group) Active() bool { return g.Name != "" }

// Refiner processes crops into the given scope. dir may be nil, in which case
// output refiners compute but write nothing.
type Refiner interface {
	Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) error
}

// Func adapts a function to the Refiner interface.
type Func func(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) error

// Refine calls f.
func (f Func) Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) error {
	return f(ctx, m, store, dir, g)
}

// StaticModule is a fixed Module, handy for tools and tests.
type StaticModule struct {
	IDValue      string
	TitleValue   string
	ContactValue string
	Level        int
}

// ID returns the module id.
func (s StaticModule) ID() string { return s.IDValue }

// Title returns the module title.
func (s StaticModule) Title() string { return s.TitleValue }

// Contact returns the module contact.
func (s StaticModule) Contact() string { return s.ContactValue }

// ExpertLevel returns the module expert level.
func (s StaticModule) ExpertLevel() int { return s.Level }
