package stats

import (
	"fmt"
	"math"
)

// Summary condenses one distribution.
type Summary struct {
	Entries int   `json:"entries"`
	Mean    Float `json:"mean"`
	Median  Float `json:"median"`
	Std     Float `json:"std"`
	Min     Float `json:"min"`
	Max     Float `json:"max"`
}

// Summarize computes a Summary over the defined entries of xs.
func Summarize(xs []float64) Summary {
	return Summary{
		Entries: len(Finite(xs)),
		Mean:    Float(Mean(xs)),
		Median:  Float(Median(xs)),
		Std:     Float(Std(xs)),
		Min:     Float(Min(xs)),
		Max:     Float(Max(xs)),
	}
}

// PullResult compares estimates of a quantity against their truth values.
type PullResult struct {
	Quantity  string    `json:"quantity"`
	Residuals Summary   `json:"residuals"`
	Pulls     *Summary  `json:"pulls,omitempty"`
	Truths    Summary   `json:"truths"`
	Estimates Summary   `json:"estimates"`
	Histogram Histogram `json:"residual_histogram"`
}

// Pull computes residuals (estimate - truth) and, when variances are given,
// pulls (residual / sqrt(variance)). With absolute set the absolute values of
// truths and estimates are compared.
func Pull(quantity string, truths, estimates, variances []float64, absolute bool, outlierZ float64) (PullResult, error) {
	if len(truths) != len(estimates) {
		return PullResult{}, fmt.Errorf("%d truths for %d estimates", len(truths), len(estimates))
	}
	if variances != nil && len(variances) != len(truths) {
		return PullResult{}, fmt.Errorf("%d variances for %d estimates", len(variances), len(truths))
	}

	t := make([]float64, len(truths))
	e := make([]float64, len(estimates))
	residuals := make([]float64, len(truths))
	for i := range truths {
		t[i], e[i] = truths[i], estimates[i]
		if absolute {
			t[i], e[i] = math.Abs(t[i]), math.Abs(e[i])
		}
		residuals[i] = e[i] - t[i]
	}

	res := PullResult{
		Quantity:  quantity,
		Residuals: Summarize(residuals),
		Truths:    Summarize(t),
		Estimates: Summarize(e),
		Histogram: NewHistogram(residuals, Binning{OutlierZScore: outlierZ}),
	}

	if variances != nil {
		pulls := make([]float64, len(residuals))
		for i, r := range residuals {
			pulls[i] = r / math.Sqrt(variances[i])
		}
		s := Summarize(pulls)
		res.Pulls = &s
	}
	return res, nil
}

// CutDirection tells which side of the cut is classified as signal.
type CutDirection string

const (
	// Above classifies estimates strictly greater than the cut as signal
	Above CutDirection = ">"
	// Below classifies estimates strictly less than the cut as signal
	Below CutDirection = "<"
)

// ClassificationResult is the confusion matrix of a cut on an estimate
// against binary truth values.
type ClassificationResult struct {
	Quantity       string       `json:"quantity"`
	Cut            float64      `json:"cut"`
	Direction      CutDirection `json:"direction"`
	TruePositives  int          `json:"true_positives"`
	FalsePositives int          `json:"false_positives"`
	TrueNegatives  int          `json:"true_negatives"`
	FalseNegatives int          `json:"false_negatives"`
	Efficiency     Float        `json:"efficiency"`
	Purity         Float        `json:"purity"`
	FakeRate       Float        `json:"fake_rate"`
	Signal         Histogram    `json:"signal_histogram"`
	Background     Histogram    `json:"background_histogram"`
}

// Classify applies the cut to estimates and compares against truths, where a
// non-zero truth marks signal. Rows with an undefined truth or estimate are
// skipped. An empty direction means Above; a nil cut means 0.5.
func Classify(quantity string, estimates, truths []float64, cut *float64, direction CutDirection, b Binning) (ClassificationResult, error) {
	if len(truths) != len(estimates) {
		return ClassificationResult{}, fmt.Errorf("%d truths for %d estimates", len(truths), len(estimates))
	}
	if direction == "" {
		direction = Above
	}
	if direction != Above && direction != Below {
		return ClassificationResult{}, fmt.Errorf("unknown cut direction %q", direction)
	}
	c := 0.5
	if cut != nil {
		c = *cut
	}

	res := ClassificationResult{Quantity: quantity, Cut: c, Direction: direction}
	var signal, background []float64
	for i, est := range estimates {
		truth := truths[i]
		if math.IsNaN(est) || math.IsNaN(truth) {
			continue
		}
		accepted := est > c
		if direction == Below {
			accepted = est < c
		}
		isSignal := truth != 0
		if isSignal {
			signal = append(signal, est)
		} else {
			background = append(background, est)
		}

		switch {
		case accepted && isSignal:
			res.TruePositives++
		case accepted:
			res.FalsePositives++
		case isSignal:
			res.FalseNegatives++
		default:
			res.TrueNegatives++
		}
	}

	res.Efficiency = ratio(res.TruePositives, res.TruePositives+res.FalseNegatives)
	res.Purity = ratio(res.TruePositives, res.TruePositives+res.FalsePositives)
	res.FakeRate = ratio(res.FalsePositives, res.TruePositives+res.FalsePositives)

	// both histograms share the binning of all estimates
	edges := b.Edges(estimates)
	lower, upper := edges[0], edges[len(edges)-1]
	shared := Binning{Bins: len(edges) - 1, Lower: &lower, Upper: &upper}
	res.Signal = NewHistogram(signal, shared)
	res.Background = NewHistogram(background, shared)
	return res, nil
}

func ratio(num, den int) Float {
	if den == 0 {
		return Float(math.NaN())
	}
	return Float(float64(num) / float64(den))
}
