package stats

import (
	"math"
)

// DefaultBins is used when a histogram or profile has no explicit binning
// and the data is not discrete.
const DefaultBins = 50

// Binning configures a histogram or profile x axis. Nil bounds are taken
// from the data; a positive OutlierZScore first clips the automatic range to
// mean ± z·std.
type Binning struct {
	Bins          int
	Lower         *float64
	Upper         *float64
	OutlierZScore float64
	AllowDiscrete bool
}

// Histogram counts the entries of a column per bin.
type Histogram struct {
	Edges     []Float `json:"edges"`
	Counts    []int   `json:"counts"`
	Underflow int     `json:"underflow"`
	Overflow  int     `json:"overflow"`
	Undefined int     `json:"undefined"`
	Entries   int     `json:"entries"`
	Mean      Float   `json:"mean"`
	Std       Float   `json:"std"`
}

// Edges computes bin edges for xs. Discrete data with at most Bins distinct
// values gets one bin centered on each value when AllowDiscrete is set.
// Infinite entries never widen the automatic range; they land in the
// underflow or overflow.
func (b Binning) Edges(xs []float64) []float64 {
	finite := bounded(xs)
	bins := b.Bins
	if bins <= 0 {
		bins = DefaultBins
	}

	if b.AllowDiscrete && b.Lower == nil && b.Upper == nil {
		values, _ := Unique(finite)
		if len(values) > 0 && len(values) <= bins {
			return discreteEdges(values)
		}
	}

	lower, upper := b.bounds(finite)
	if !(upper > lower) {
		// a single value still gets a unit-width bin around it
		lower, upper = lower-0.5, upper+0.5
	}

	edges := make([]float64, bins+1)
	width := (upper - lower) / float64(bins)
	for i := range edges {
		edges[i] = lower + float64(i)*width
	}
	edges[bins] = upper
	return edges
}

func (b Binning) bounds(finite []float64) (lower, upper float64) {
	if len(finite) == 0 {
		lower, upper = 0, 1
	} else {
		lower, upper = Min(finite), Max(finite)
		if b.OutlierZScore > 0 {
			mean, std := Mean(finite), Std(finite)
			lower = math.Max(lower, mean-b.OutlierZScore*std)
			upper = math.Min(upper, mean+b.OutlierZScore*std)
		}
	}
	if b.Lower != nil {
		lower = *b.Lower
	}
	if b.Upper != nil {
		upper = *b.Upper
	}
	return lower, upper
}

// bounded returns the entries of xs that are neither NaN nor infinite.
func bounded(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

func discreteEdges(values []float64) []float64 {
	if len(values) == 1 {
		return []float64{values[0] - 0.5, values[0] + 0.5}
	}
	edges := make([]float64, 0, len(values)+1)
	edges = append(edges, values[0]-(values[1]-values[0])/2)
	for i := 1; i < len(values); i++ {
		edges = append(edges, (values[i-1]+values[i])/2)
	}
	last := len(values) - 1
	edges = append(edges, values[last]+(values[last]-values[last-1])/2)
	return edges
}

// bin returns the bin index of x for half-open bins [e_i, e_i+1), with the
// last bin closed; -1 means underflow and len(edges)-1 overflow.
func bin(edges []float64, x float64) int {
	n := len(edges) - 1
	if x < edges[0] {
		return -1
	}
	if x > edges[n] {
		return n
	}
	if x == edges[n] {
		return n - 1
	}
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if edges[mid+1] <= x {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// NewHistogram fills a histogram of xs.
func NewHistogram(xs []float64, b Binning) Histogram {
	edges := b.Edges(xs)
	h := Histogram{
		Edges:   Floats(edges),
		Counts:  make([]int, len(edges)-1),
		Entries: len(xs),
		Mean:    Float(Mean(xs)),
		Std:     Float(Std(xs)),
	}
	for _, x := range xs {
		if math.IsNaN(x) {
			h.Undefined++
			continue
		}
		switch i := bin(edges, x); {
		case i < 0:
			h.Underflow++
		case i >= len(h.Counts):
			h.Overflow++
		default:
			h.Counts[i]++
		}
	}
	return h
}

// Profile is the mean of y in bins of x.
type Profile struct {
	Edges  []Float `json:"edges"`
	Counts []int   `json:"counts"`
	Mean   []Float `json:"mean"`
	Std    []Float `json:"std"`
	// StdErr is the standard error of each bin mean
	StdErr []Float `json:"std_err"`
}

// NewProfile bins the pairs (x, y) by x. Pairs with an undefined coordinate
// are ignored. Bins without entries carry NaN statistics.
func NewProfile(x, y []float64, b Binning) Profile {
	n := min(len(x), len(y))
	var xs, ys []float64
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}

	edges := b.Edges(xs)
	nbins := len(edges) - 1
	binned := make([][]float64, nbins)
	for i, xv := range xs {
		if k := bin(edges, xv); k >= 0 && k < nbins {
			binned[k] = append(binned[k], ys[i])
		}
	}

	p := Profile{
		Edges:  Floats(edges),
		Counts: make([]int, nbins),
		Mean:   make([]Float, nbins),
		Std:    make([]Float, nbins),
		StdErr: make([]Float, nbins),
	}
	for k, vals := range binned {
		std := Std(vals)
		p.Counts[k] = len(vals)
		p.Mean[k] = Float(Mean(vals))
		p.Std[k] = Float(std)
		p.StdErr[k] = Float(math.NaN())
		if len(vals) > 0 {
			p.StdErr[k] = Float(std / math.Sqrt(float64(len(vals))))
		}
	}
	return p
}

// Scatter holds the defined pairs of two columns, clipped to the x bounds.
type Scatter struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// NewScatter keeps the pairs where both coordinates are defined and x lies
// inside the binning bounds.
func NewScatter(x, y []float64, b Binning) Scatter {
	n := min(len(x), len(y))
	var s Scatter
	lower, upper := b.bounds(bounded(x[:n]))
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		if x[i] < lower || x[i] > upper {
			continue
		}
		s.X = append(s.X, x[i])
		s.Y = append(s.Y, y[i])
	}
	return s
}
