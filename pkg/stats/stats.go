// Package stats provides NaN-aware descriptive statistics over crop columns.
//
// Undefined entries (NaN) are ignored by every aggregation. An aggregation
// over a column without any defined entry returns NaN.
package stats

import (
	"math"
	"sort"

	mstats "github.com/montanaflynn/stats"
)

// Aggregation reduces a column to a single figure of merit.
type Aggregation struct {
	Name string
	Fn   func([]float64) float64
}

// Finite returns the defined (non-NaN) entries of xs, in order.
func Finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

func reduce(fn func(mstats.Float64Data) (float64, error)) func([]float64) float64 {
	return func(xs []float64) float64 {
		finite := Finite(xs)
		if len(finite) == 0 {
			return math.NaN()
		}
		v, err := fn(finite)
		if err != nil {
			return math.NaN()
		}
		return v
	}
}

var (
	// Mean is the arithmetic mean ignoring undefined entries
	Mean = reduce(mstats.Mean)
	// Median ignores undefined entries
	Median = reduce(mstats.Median)
	// Std is the population standard deviation ignoring undefined entries
	Std = reduce(mstats.StandardDeviationPopulation)
	// Sum ignores undefined entries
	Sum = reduce(mstats.Sum)
	// Min ignores undefined entries
	Min = reduce(mstats.Min)
	// Max ignores undefined entries
	Max = reduce(mstats.Max)
)

var aggregations = map[string]Aggregation{
	"mean":   {Name: "mean", Fn: Mean},
	"median": {Name: "median", Fn: Median},
	"std":    {Name: "std", Fn: Std},
	"sum":    {Name: "sum", Fn: Sum},
	"min":    {Name: "min", Fn: Min},
	"max":    {Name: "max", Fn: Max},
}

// Lookup returns the named aggregation. An empty name means the mean.
func Lookup(name string) (Aggregation, bool) {
	if name == "" {
		name = "mean"
	}
	a, ok := aggregations[name]
	return a, ok
}

// AggregationNames lists the registered aggregations in lexical order.
func AggregationNames() []string {
	names := make([]string, 0, len(aggregations))
	for name := range aggregations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unique returns the distinct values of xs in ascending order and, for every
// entry of xs, the index of its value in that list. All NaNs share one
// trailing entry.
func Unique(xs []float64) (values []float64, index []int) {
	hasNaN := false
	seen := make(map[float64]struct{}, len(xs))
	for _, x := range xs {
		if math.IsNaN(x) {
			hasNaN = true
			continue
		}
		if _, ok := seen[x]; !ok {
			seen[x] = struct{}{}
			values = append(values, x)
		}
	}
	sort.Float64s(values)
	if hasNaN {
		values = append(values, math.NaN())
	}

	index = make([]int, len(xs))
	for i, x := range xs {
		if math.IsNaN(x) {
			index[i] = len(values) - 1
			continue
		}
		index[i] = sort.SearchFloat64s(values[:len(values)-boolToInt(hasNaN)], x)
	}
	return values, index
}

// Digitize assigns each entry of xs to an interval of the ascending edges:
// index i means edges[i-1] < x <= edges[i], 0 means x <= edges[0] and
// len(edges) means x is above every edge or NaN.
func Digitize(xs, edges []float64) []int {
	out := make([]int, len(xs))
	for i, x := range xs {
		if math.IsNaN(x) {
			out[i] = len(edges)
			continue
		}
		out[i] = sort.SearchFloat64s(edges, x)
	}
	return out
}

// HasMoreThanOneValue reports whether xs holds at least two distinct values.
func HasMoreThanOneValue(xs []float64) bool {
	if len(xs) == 0 {
		return false
	}
	first := xs[0]
	for _, x := range xs[1:] {
		if x != first {
			return true
		}
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
