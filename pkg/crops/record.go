package crops

import (
	"iter"
	"math"
	"sort"
)

// Mode is the accumulation mode fixed by the first record of a run.
type Mode int

const (
	// ModeUnset means no record has been accumulated yet
	ModeUnset Mode = iota
	// ModeScalar accumulates bare numbers into a single array
	ModeScalar
	// ModeFields accumulates field mappings into named columns
	ModeFields
)

func (m Mode) String() string {
	switch m {
	case ModeScalar:
		return "scalar"
	case ModeFields:
		return "fields"
	default:
		return "unset"
	}
}

// Undefined is the sentinel stored for a field that a record did not carry.
var Undefined = math.NaN()

// IsUndefined reports whether v is the undefined sentinel.
func IsUndefined(v float64) bool { return math.IsNaN(v) }

// Record is one crop produced by a peel function. It is a Scalar, a Fields
// mapping or a Sequence of mappings.
type Record interface {
	recordMode() Mode
}

// Scalar is a bare numeric crop.
type Scalar float64

func (Scalar) recordMode() Mode { return ModeScalar }

// Fields maps field names to numeric values. Fields first seen in the same
// record are added to the store in sorted order.
type Fields map[string]float64

func (Fields) recordMode() Mode { return ModeFields }

// sortedKeys returns the keys of f in lexical order.
func (f Fields) sortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sequence is a lazy, finite sequence of field mappings yielded for a single
// object. It is drained completely before the next object is peeled.
type Sequence iter.Seq[Fields]

func (Sequence) recordMode() Mode { return ModeUnset }

// Each returns a Sequence over the given mappings.
func Each(fields ...Fields) Sequence {
	return func(yield func(Fields) bool) {
		for _, f := range fields {
			if !yield(f) {
				return
			}
		}
	}
}

// ModeOf returns the accumulation mode a record implies.
func ModeOf(r Record) Mode {
	if r == nil {
		return ModeUnset
	}
	return r.recordMode()
}
