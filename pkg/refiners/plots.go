package refiners

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/harvest/pkg/crops"
	"github.com/ajitpratap0/harvest/pkg/logger"
	"github.com/ajitpratap0/harvest/pkg/scope"
	"github.com/ajitpratap0/harvest/pkg/stats"
)

var histogramTexts = Texts{
	Name:        "{module.id}_{part_name}_histogram{groupby_key}{stackby_key}",
	Title:       "Histogram of {part_name}{groupby_key}{stackby_key} from {module.title}",
	Contact:     defaultContact,
	Description: "This is a histogram of {part_name}{groupby_key}{stackby_key}.",
	Check:       "Check if the distribution is reasonable",
}

// Stack is the share of a plot belonging to one value of the stacking column.
type Stack[T any] struct {
	Label string `json:"label"`
	Plot  T      `json:"plot"`
}

// HistogramPlot is the artifact written by SaveHistograms.
type HistogramPlot struct {
	Meta
	Quantity  string                   `json:"quantity"`
	Histogram *stats.Histogram         `json:"histogram,omitempty"`
	Stacks    []Stack[stats.Histogram] `json:"stacks,omitempty"`
}

// SaveHistograms writes one histogram per column. With StackBy set, every
// histogram is split by the distinct values of that column on a shared
// binning.
type SaveHistograms struct {
	Texts
	Binning stats.Binning
	StackBy string
}

// Refine implements Refiner.
func (r *SaveHistograms) Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) error {
	st, err := newStacking(store, r.StackBy)
	if err != nil {
		return err
	}
	ps, err := parts(store, r.StackBy)
	if err != nil {
		return err
	}

	v := groupValues(moduleValues(m), g, true).with("stackby_key", st.key())
	for _, p := range ps {
		plot := HistogramPlot{
			Meta:     r.Texts.render(histogramTexts, v.with("part_name", p.name)),
			Quantity: p.name,
		}
		if st == nil {
			h := stats.NewHistogram(p.values, r.Binning)
			plot.Histogram = &h
		} else {
			shared := sharedBinning(r.Binning, p.values)
			for i, label := range st.labels {
				plot.Stacks = append(plot.Stacks, Stack[stats.Histogram]{
					Label: label,
					Plot:  stats.NewHistogram(st.take(i, p.values), shared),
				})
			}
		}

		logger.WithContext(ctx).Debug("histogram", zap.String("name", plot.Name))
		if dir != nil {
			if err := writeJSON(dir, plot.Name, plot); err != nil {
				return err
			}
		}
	}
	return nil
}

var profileTexts = Texts{
	Name:        "{module.id}_{y_part_name}_by_{x_part_name}_profile{groupby_key}{stackby_key}",
	Title:       "Profile of {y_part_name} by {x_part_name} from {module.title}",
	Contact:     defaultContact,
	Description: "This is a profile of {y_part_name} over {x_part_name}.",
	Check:       "Check if the trend line is reasonable.",
}

var scatterTexts = Texts{
	Name:        "{module.id}_{y_part_name}_by_{x_part_name}_scatter{groupby_key}{stackby_key}",
	Title:       "Scatter of {y_part_name} by {x_part_name} from {module.title}",
	Contact:     defaultContact,
	Description: "This is a scatter of {y_part_name} over {x_part_name}.",
	Check:       "Check if the distributions is reasonable.",
}

// PairPlot is the artifact written by SaveProfiles and SaveScatters.
type PairPlot[T any] struct {
	Meta
	X      string     `json:"x"`
	Y      string     `json:"y"`
	Plot   *T         `json:"plot,omitempty"`
	Stacks []Stack[T] `json:"stacks,omitempty"`
}

// Pairs configures the columns plotted against each other: every Y column
// over every X column. Empty Y means every column; empty X means every column
// not in Y.
type Pairs struct {
	X                []string
	Y                []string
	Binning          stats.Binning
	StackBy          string
	SkipSingleValued bool
}

// pairs yields the (x, y) parts in lexical order, skipping single valued
// columns when configured.
func (pc Pairs) pairs(ctx context.Context, store *crops.Store) ([][2]part, error) {
	exclude := []string{}
	if pc.StackBy != "" {
		exclude = append(exclude, pc.StackBy)
	}

	yStore, _, err := store.Select(crops.Selection{Names: pc.Y, Exclude: exclude})
	if err != nil {
		return nil, err
	}
	xStore, _, err := store.Select(crops.Selection{Names: pc.X, Exclude: append(exclude, pc.Y...)})
	if err != nil {
		return nil, err
	}
	ys, err := parts(yStore)
	if err != nil {
		return nil, err
	}
	xs, err := parts(xStore)
	if err != nil {
		return nil, err
	}

	log := logger.WithContext(ctx)
	var out [][2]part
	for _, y := range ys {
		for _, x := range xs {
			if pc.SkipSingleValued && !stats.HasMoreThanOneValue(x.values) {
				log.Info("skipping pair plot, x has a single value",
					zap.String("y", y.name), zap.String("x", x.name))
				continue
			}
			if pc.SkipSingleValued && !stats.HasMoreThanOneValue(y.values) {
				log.Info("skipping pair plot, y has a single value",
					zap.String("y", y.name), zap.String("x", x.name))
				continue
			}
			out = append(out, [2]part{x, y})
		}
	}
	return out, nil
}

// SaveProfiles writes the mean of each Y column in bins of each X column.
type SaveProfiles struct {
	Texts
	Pairs
}

// Refine implements Refiner.
func (r *SaveProfiles) Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) error {
	return refinePairs(ctx, m, store, dir, g, r.Texts, profileTexts, r.Pairs, stats.NewProfile)
}

// SaveScatters writes the defined (x, y) pairs of each Y column over each X
// column.
type SaveScatters struct {
	Texts
	Pairs
}

// Refine implements Refiner.
func (r *SaveScatters) Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) error {
	return refinePairs(ctx, m, store, dir, g, r.Texts, scatterTexts, r.Pairs, stats.NewScatter)
}

func refinePairs[T any](ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group,
	texts, defaults Texts, pc Pairs, plot func(x, y []float64, b stats.Binning) T) error {
	st, err := newStacking(store, pc.StackBy)
	if err != nil {
		return err
	}
	pairs, err := pc.pairs(ctx, store)
	if err != nil {
		return err
	}

	v := groupValues(moduleValues(m), g, true).with("stackby_key", st.key())
	for _, xy := range pairs {
		x, y := xy[0], xy[1]
		artifact := PairPlot[T]{
			Meta: texts.render(defaults, v.with("x_part_name", x.name, "y_part_name", y.name)),
			X:    x.name,
			Y:    y.name,
		}
		if st == nil {
			p := plot(x.values, y.values, pc.Binning)
			artifact.Plot = &p
		} else {
			shared := sharedBinning(pc.Binning, x.values)
			for i, label := range st.labels {
				artifact.Stacks = append(artifact.Stacks, Stack[T]{
					Label: label,
					Plot:  plot(st.take(i, x.values), st.take(i, y.values), shared),
				})
			}
		}

		if dir != nil {
			if err := writeJSON(dir, artifact.Name, artifact); err != nil {
				return err
			}
		}
	}
	return nil
}

// stacking splits rows by the distinct values of one column.
type stacking struct {
	column string
	labels []string
	index  []int
}

func newStacking(store *crops.Store, column string) (*stacking, error) {
	if column == "" {
		return nil, nil
	}
	values, err := store.Column(column)
	if err != nil {
		return nil, err
	}
	unique, index := stats.Unique(values)
	labels := make([]string, len(unique))
	for i, u := range unique {
		labels[i] = FormatValue(u)
	}
	return &stacking{column: column, labels: labels, index: index}, nil
}

func (s *stacking) key() string {
	if s == nil {
		return ""
	}
	return " stacked by " + s.column
}

// take returns the entries of xs in stack i.
func (s *stacking) take(i int, xs []float64) []float64 {
	var out []float64
	for row, k := range s.index {
		if k == i {
			out = append(out, xs[row])
		}
	}
	return out
}

// sharedBinning fixes the binning of all stacks to the one of the full data.
func sharedBinning(b stats.Binning, xs []float64) stats.Binning {
	edges := b.Edges(xs)
	lower, upper := edges[0], edges[len(edges)-1]
	return stats.Binning{Bins: len(edges) - 1, Lower: &lower, Upper: &upper}
}
