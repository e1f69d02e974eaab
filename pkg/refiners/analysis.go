package refiners

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/ajitpratap0/harvest/pkg/crops"
	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/logger"
	"github.com/ajitpratap0/harvest/pkg/scope"
	"github.com/ajitpratap0/harvest/pkg/stats"
)

const (
	// DefaultTruthName is the column holding the true values of a part
	DefaultTruthName = "{part_name}_truth"
	// DefaultEstimateName is the column holding the estimates of a part
	DefaultEstimateName = "{part_name}_estimate"
	// DefaultVarianceName is the column holding the estimate variances of a part
	DefaultVarianceName = "{part_name}_variance"
)

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// SaveClassificationAnalysis compares a cut on one or more estimate columns
// against a binary truth column.
type SaveClassificationAnalysis struct {
	PartName string
	Contact  string
	// TruthName defaults to "{part_name}_truth"
	TruthName string
	// EstimateNames defaults to ["{part_name}_estimate"]
	EstimateNames []string
	Cut           *float64
	CutDirection  stats.CutDirection
	Binning       stats.Binning
}

// Classification is the artifact written by SaveClassificationAnalysis.
type Classification struct {
	Meta
	stats.ClassificationResult
}

// Refine implements Refiner.
func (r *SaveClassificationAnalysis) Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) error {
	v := groupValues(moduleValues(m), g, false).with("part_name", r.PartName)
	contact := Format(orDefault(r.Contact, defaultContact), v)

	truthName := Format(orDefault(r.TruthName, DefaultTruthName), v)
	truths, err := column(store, truthName)
	if err != nil {
		return err
	}

	estimateNames := r.EstimateNames
	if len(estimateNames) == 0 {
		estimateNames = []string{DefaultEstimateName}
	}
	for _, tmpl := range estimateNames {
		estimateName := Format(tmpl, v)
		estimates, err := column(store, estimateName)
		if err != nil {
			return err
		}

		res, err := stats.Classify(estimateName, estimates, truths, r.Cut, r.CutDirection, r.Binning)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeRefinement, "classification analysis failed").
				WithDetail("estimate", estimateName)
		}

		name := Format("{module.id}_"+estimateName+"_classification{groupby_key}", v)
		logger.WithContext(ctx).Debug("classification analysis",
			zap.String("name", name),
			zap.Float64("efficiency", float64(res.Efficiency)),
			zap.Float64("purity", float64(res.Purity)))

		if dir != nil {
			artifact := Classification{
				Meta: Meta{
					Name:    name,
					Title:   "Classification of " + estimateName + " against " + truthName,
					Contact: contact,
				},
				ClassificationResult: res,
			}
			if err := writeJSON(dir, name, artifact); err != nil {
				return err
			}
		}
	}
	return nil
}

// SavePullAnalysis compares estimates of one or more parts against their
// truths, with pulls when a variance column is present.
type SavePullAnalysis struct {
	// Name defaults to "{module.id}_{quantity_name}"
	Name    string
	Contact string
	// TitlePostfix defaults to " from {module.title}"
	TitlePostfix string
	PartNames    []string
	TruthName    string
	EstimateName string
	VarianceName string
	// QuantityName defaults to the part name
	QuantityName string
	// AuxNames are profiled against the residuals
	AuxNames      []string
	Absolute      bool
	OutlierZScore float64
}

// PullAnalysis is the artifact written by SavePullAnalysis.
type PullAnalysis struct {
	Meta
	stats.PullResult
	Auxiliaries map[string]stats.Profile `json:"auxiliaries,omitempty"`
}

// Refine implements Refiner.
func (r *SavePullAnalysis) Refine(ctx context.Context, m Module, store *crops.Store, dir scope.Scope, g Group) error {
	base := groupValues(moduleValues(m), g, false)
	contact := Format(orDefault(r.Contact, defaultContact), base)

	auxiliaries := map[string][]float64{}
	for _, name := range r.AuxNames {
		col, err := column(store, name)
		if err != nil {
			return err
		}
		auxiliaries[name] = col
	}

	for _, partName := range r.PartNames {
		v := base.with("part_name", partName)
		quantity := orDefault(r.QuantityName, partName)
		v = v.with("quantity_name", quantity)

		truths, err := column(store, Format(orDefault(r.TruthName, DefaultTruthName), v))
		if err != nil {
			return err
		}
		estimates, err := column(store, Format(orDefault(r.EstimateName, DefaultEstimateName), v))
		if err != nil {
			return err
		}
		// variances are optional
		variances, _ := column(store, Format(orDefault(r.VarianceName, DefaultVarianceName), v))

		res, err := stats.Pull(quantity, truths, estimates, variances, r.Absolute, r.OutlierZScore)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeRefinement, "pull analysis failed").
				WithDetail("part", partName)
		}

		artifact := PullAnalysis{
			Meta: Meta{
				Name:    Format(orDefault(r.Name, "{module.id}_{quantity_name}"), v),
				Title:   "Pull analysis of " + quantity + Format(orDefault(r.TitlePostfix, " from {module.title}"), v),
				Contact: contact,
			},
			PullResult: res,
		}
		if len(auxiliaries) > 0 {
			residuals := make([]float64, len(truths))
			for i := range truths {
				t, e := truths[i], estimates[i]
				if r.Absolute {
					t, e = math.Abs(t), math.Abs(e)
				}
				residuals[i] = e - t
			}
			artifact.Auxiliaries = make(map[string]stats.Profile, len(auxiliaries))
			for name, aux := range auxiliaries {
				artifact.Auxiliaries[name] = stats.NewProfile(aux, residuals, stats.Binning{OutlierZScore: r.OutlierZScore})
			}
		}

		logger.WithContext(ctx).Debug("pull analysis",
			zap.String("name", artifact.Name),
			zap.Bool("with_pulls", res.Pulls != nil))

		if dir != nil {
			if err := writeJSON(dir, artifact.Name, artifact); err != nil {
				return err
			}
		}
	}
	return nil
}
