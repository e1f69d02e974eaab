package refiners

import (
	"context"
	stderrors "errors"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/ajitpratap0/harvest/pkg/crops"
	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/logger"
	"github.com/ajitpratap0/harvest/pkg/scope"
	"github.com/ajitpratap0/harvest/pkg/stats"
)

// SelectSpec projects, renames, computes and excludes columns.
type SelectSpec = crops.Selection

type selectRefiner struct {
	wrapped Refiner
	spec    SelectSpec
}

// Select wraps r so that it only sees the selected columns. Requested names
// that are absent are logged and omitted.
func Select(r Refiner, spec SelectSpec) Refiner {
	return &selectRefiner{wrapped: r, spec: spec}
}

func (s *selectRefiner) Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) error {
	selected, missing, err := store.Select(s.spec)
	if len(missing) > 0 {
		logger.WithContext(ctx).Warn("cannot select columns absent from crops",
			zap.Strings("missing", missing),
			zap.Strings("available", store.SortedNames()))
	}
	if err != nil {
		return err
	}
	return s.wrapped.Refine(ctx, m, selected, dir, g)
}

// FilterSpec selects rows. Mask, when set, is used directly; otherwise
// Predicate (default: non-zero) is evaluated over column On, or over the
// values of a scalar store when On is empty.
type FilterSpec struct {
	Mask      []bool
	Predicate crops.Predicate
	On        string
}

type filterRefiner struct {
	wrapped Refiner
	spec    FilterSpec
}

// Filter wraps r so that it only sees the rows accepted by spec.
func Filter(r Refiner, spec FilterSpec) Refiner {
	return &filterRefiner{wrapped: r, spec: spec}
}

func (f *filterRefiner) Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) error {
	mask := f.spec.Mask
	if mask == nil {
		var err error
		mask, err = store.Mask(f.spec.On, f.spec.Predicate)
		if err != nil {
			return err
		}
	}
	filtered, err := store.Take(mask)
	if err != nil {
		return err
	}
	return f.wrapped.Refine(ctx, m, filtered, dir, g)
}

// GroupSpec names one grouping: by distinct values of a column, by bin edges
// of a column, or no grouping at all.
type GroupSpec struct {
	Column string
	Edges  []float64
	byEdge bool
}

// ByValue groups by the distinct values of column.
func ByValue(column string) GroupSpec { return GroupSpec{Column: column} }

// ByEdges groups column into the intervals delimited by edges.
func ByEdges(column string, edges ...float64) GroupSpec {
	return GroupSpec{Column: column, Edges: edges, byEdge: true}
}

// Ungrouped passes the crops through unpartitioned.
func Ungrouped() GroupSpec { return GroupSpec{} }

// IsUngrouped reports whether the spec passes the crops through.
func (gs GroupSpec) IsUngrouped() bool { return gs.Column == "" }

type groupByRefiner struct {
	wrapped   Refiner
	specs     []GroupSpec
	excludeBy bool
}

// GroupBy wraps r so that it runs once per non-empty partition of every spec,
// in spec order. When excludeBy is set the grouping column is dropped from the
// partitions.
func GroupBy(r Refiner, excludeBy bool, specs ...GroupSpec) Refiner {
	if len(specs) == 0 {
		specs = []GroupSpec{Ungrouped()}
	}
	return &groupByRefiner{wrapped: r, specs: specs, excludeBy: excludeBy}
}

// partition is one non-empty group of rows.
type partition struct {
	label string
	mask  []bool
}

func (gb *groupByRefiner) Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, _ Group) error {
	var errs []error
	for _, spec := range gb.specs {
		if spec.IsUngrouped() {
			if err := gb.wrapped.Refine(ctx, m, store, dir, Group{}); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		parts, err := store.Column(spec.Column)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		var partitions []partition
		if spec.byEdge {
			partitions = partitionByEdges(parts, spec.Edges)
		} else {
			partitions = partitionByValue(parts)
		}

		selected := store
		if gb.excludeBy {
			selected = store.Without(spec.Column)
		}

		for _, p := range partitions {
			filtered, err := selected.Take(p.mask)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			g := Group{Name: spec.Column, Value: p.label}
			if err := gb.wrapped.Refine(ctx, m, filtered, dir, g); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}

func partitionByValue(parts []float64) []partition {
	values, index := stats.Unique(parts)
	out := make([]partition, len(values))
	for i, v := range values {
		out[i] = partition{label: " = " + FormatValue(v), mask: make([]bool, len(parts))}
	}
	for row, i := range index {
		out[i].mask[row] = true
	}
	return out
}

// partitionByEdges assigns every row to exactly one of: below the first
// edge, between consecutive edges (upper bound inclusive), above the last
// edge, or undefined.
func partitionByEdges(parts, edges []float64) []partition {
	cuts := append([]float64(nil), edges...)
	sort.Float64s(cuts)
	if len(cuts) == 0 || !math.IsInf(cuts[len(cuts)-1], 1) {
		cuts = append(cuts, math.Inf(1))
	}

	labels := make([]string, 0, len(cuts)+1)
	labels = append(labels, "below "+FormatValue(cuts[0]))
	for i := 1; i < len(cuts); i++ {
		lower, upper := cuts[i-1], cuts[i]
		switch {
		case lower == upper:
			labels = append(labels, "= "+FormatValue(lower))
		case math.IsInf(upper, 1):
			labels = append(labels, "above "+FormatValue(lower))
		default:
			labels = append(labels, "between "+FormatValue(lower)+" and "+FormatValue(upper))
		}
	}
	labels = append(labels, "is nan")

	index := stats.Digitize(parts, cuts)
	out := make([]partition, 0, len(labels))
	for i, label := range labels {
		mask := make([]bool, len(parts))
		hit := false
		for row, idx := range index {
			if idx == i {
				mask[row] = true
				hit = true
			}
		}
		if hit {
			out = append(out, partition{label: label, mask: mask})
		}
	}
	return out
}

// CdSpec names the sub-scope entered before delegating. Folder may use
// {groupby_addition}, {groupby} and {groupby_value}; an empty Folder means
// the group addition when grouped and the current scope otherwise. An empty
// GroupByAddition means "_groupby_{groupby}_{groupby_value}".
type CdSpec struct {
	Folder          string
	GroupByAddition string
}

// DefaultGroupByAddition is the folder suffix used for grouped output.
const DefaultGroupByAddition = "_groupby_{groupby}_{groupby_value}"

type cdRefiner struct {
	wrapped Refiner
	spec    CdSpec
}

// Cd wraps r so that it writes into a sub-scope that is released when r
// returns, whether it fails or not.
func Cd(r Refiner, spec CdSpec) Refiner {
	return &cdRefiner{wrapped: r, spec: spec}
}

// FolderFor resolves the folder path for the given group.
func (spec CdSpec) FolderFor(g Group) string {
	folder := spec.Folder
	if folder == "" && g.Active() {
		folder = "{groupby_addition}"
	}

	addition := ""
	if g.Active() {
		addition = spec.GroupByAddition
		if addition == "" {
			addition = DefaultGroupByAddition
		}
		addition = Format(addition, Values{"groupby": g.Name, "groupby_value": g.Value})
	}

	folder = Format(folder, Values{
		"groupby_addition": addition,
		"groupby":          g.Name,
		"groupby_value":    g.Value,
	})
	if folder == "" {
		return ""
	}
	return scope.SavePath(folder)
}

func (c *cdRefiner) Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) (err error) {
	if dir == nil {
		return c.wrapped.Refine(ctx, m, store, nil, g)
	}

	folder := c.spec.FolderFor(g)
	sub, err := dir.Cd(folder)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to enter output folder").
			WithDetail("folder", folder)
	}
	defer func() {
		if cerr := sub.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return c.wrapped.Refine(ctx, m, store, sub, g)
}

type expertLevelRefiner struct {
	wrapped Refiner
	above   *int
	below   *int
}

// ExpertLevel wraps r so that it only runs when the module expert level is
// strictly above `above` and strictly below `below`. Nil bounds are open.
func ExpertLevel(r Refiner, above, below *int) Refiner {
	return &expertLevelRefiner{wrapped: r, above: above, below: below}
}

// Enabled reports whether the gate lets level through.
func (e *expertLevelRefiner) Enabled(level int) bool {
	if e.above != nil && !(level > *e.above) {
		return false
	}
	if e.below != nil && !(level < *e.below) {
		return false
	}
	return true
}

func (e *expertLevelRefiner) Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) error {
	if !e.Enabled(m.ExpertLevel()) {
		logger.WithContext(ctx).Debug("refiner disabled at this expert level",
			zap.Int("expert_level", m.ExpertLevel()))
		return nil
	}
	return e.wrapped.Refine(ctx, m, store, dir, g)
}

// Context collects the decorators applied by With.
type Context struct {
	AboveExpertLevel *int
	BelowExpertLevel *int

	Folder                string
	FolderGroupByAddition string

	Filter *FilterSpec

	GroupBy []GroupSpec
	// ExcludeGroupBy defaults to true
	ExcludeGroupBy *bool

	Select SelectSpec
}

// With wraps r in the decorators configured in c. From the outside in, the
// resulting refiner gates on the expert level, filters rows, groups, enters
// the output folder and selects columns. Selection runs inside each group, so
// the grouping column need not be among the selected names. Callers wanting
// select before grouping compose the decorators directly.
func With(r Refiner, c Context) Refiner {
	if !c.Select.IsZero() {
		r = Select(r, c.Select)
	}
	if c.Folder != "" || c.FolderGroupByAddition != "" || len(c.GroupBy) > 0 {
		r = Cd(r, CdSpec{Folder: c.Folder, GroupByAddition: c.FolderGroupByAddition})
	}
	if len(c.GroupBy) > 0 {
		excludeBy := true
		if c.ExcludeGroupBy != nil {
			excludeBy = *c.ExcludeGroupBy
		}
		r = GroupBy(r, excludeBy, c.GroupBy...)
	}
	if c.Filter != nil {
		r = Filter(r, *c.Filter)
	}
	if c.AboveExpertLevel != nil || c.BelowExpertLevel != nil {
		r = ExpertLevel(r, c.AboveExpertLevel, c.BelowExpertLevel)
	}
	return r
}
