package refiners

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/ajitpratap0/harvest/pkg/crops"
	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/logger"
	"github.com/ajitpratap0/harvest/pkg/scope"
	"github.com/ajitpratap0/harvest/pkg/stats"
)

var figuresOfMeritTexts = Texts{
	Name:        "{module.id}_figures_of_merit{groupby_key}",
	Title:       "Figures of merit in {module.title}",
	Contact:     defaultContact,
	Description: "Figures of merit are the {aggregation} of {keys}",
	Check:       "Check for reasonable values",
}

// DefaultFigureKey names each figure after the aggregation and the column.
const DefaultFigureKey = "{aggregation}_{part_name}"

// SaveFiguresOfMerit reduces every column to one number.
type SaveFiguresOfMerit struct {
	Texts
	// Key names each figure, default "{aggregation}_{part_name}"
	Key string
	// Aggregation is one of stats.AggregationNames(), default "mean"
	Aggregation string
	// Print receives a table of the figures when set
	Print io.Writer
}

// Figure is one named figure of merit.
type Figure struct {
	Key   string      `json:"key"`
	Value stats.Float `json:"value"`
}

// FiguresOfMerit is the artifact written by SaveFiguresOfMerit.
type FiguresOfMerit struct {
	Meta
	Aggregation string   `json:"aggregation"`
	Figures     []Figure `json:"figures"`
}

// Refine implements Refiner.
func (r *SaveFiguresOfMerit) Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) error {
	agg, ok := stats.Lookup(r.Aggregation)
	if !ok {
		return errors.Newf(errors.ErrorTypeConfig, "unknown aggregation %q", r.Aggregation).
			WithDetail("known", stats.AggregationNames())
	}

	fom, err := r.compute(m, store, g, agg)
	if err != nil {
		return err
	}

	logger.WithContext(ctx).Debug("computed figures of merit",
		zap.String("name", fom.Name), zap.Int("figures", len(fom.Figures)))

	if r.Print != nil {
		renderFigures(r.Print, fom)
	}
	if dir == nil {
		return nil
	}
	return writeJSON(dir, fom.Name, fom)
}

func (r *SaveFiguresOfMerit) compute(m Module, store *crops.Store, g Group, agg stats.Aggregation) (*FiguresOfMerit, error) {
	v := groupValues(moduleValues(m), g, false).with("aggregation", agg.Name)

	ps, err := parts(store)
	if err != nil {
		return nil, err
	}

	keyTemplate := r.Key
	if keyTemplate == "" {
		keyTemplate = DefaultFigureKey
	}
	figures := make([]Figure, 0, len(ps))
	keys := make([]string, 0, len(ps))
	for _, p := range ps {
		key := Format(keyTemplate, v.with("part_name", p.name))
		figures = append(figures, Figure{Key: key, Value: stats.Float(agg.Fn(p.values))})
		keys = append(keys, key)
	}

	v = v.with("keys", "["+strings.Join(keys, ", ")+"]")
	return &FiguresOfMerit{
		Meta:        r.Texts.render(figuresOfMeritTexts, v),
		Aggregation: agg.Name,
		Figures:     figures,
	}, nil
}

func renderFigures(w io.Writer, fom *FiguresOfMerit) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fom.Title)
	t.AppendHeader(table.Row{"key", "value"})
	for _, f := range fom.Figures {
		t.AppendRow(table.Row{f.Key, fmt.Sprintf("%.6g", float64(f.Value))})
	}
	t.AppendFooter(table.Row{"description", fom.Description})
	t.Render()
}
