// Package crops provides the columnar aggregate ("crops") that a harvest run
// builds from its per-object records, and the accumulator that builds it.
//
// A Store is immutable once built. Every derivation (selection, filtering,
// row masks) returns a fresh Store, so sibling consumers always see the
// original data.
package crops

import (
	"fmt"
	"math"
	"sort"

	"github.com/ajitpratap0/harvest/pkg/errors"
)

// Store is a finalized columnar aggregate. In fields mode it maps names to
// equal-length float64 columns; in scalar mode it holds a single array.
type Store struct {
	names   []string
	columns map[string][]float64
	values  []float64
	scalar  bool
	rows    int
}

// NewStore builds a fields-mode store from columns in the given order.
// All columns must have the same length.
func NewStore(names []string, columns map[string][]float64) (*Store, error) {
	s := &Store{
		names:   make([]string, 0, len(names)),
		columns: make(map[string][]float64, len(names)),
		rows:    -1,
	}
	for _, name := range names {
		col, ok := columns[name]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "column %q listed but not provided", name)
		}
		if _, dup := s.columns[name]; dup {
			return nil, errors.Newf(errors.ErrorTypeValidation, "column %q listed twice", name)
		}
		if s.rows >= 0 && len(col) != s.rows {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"column %q has %d rows, expected %d", name, len(col), s.rows).
				WithDetail("column", name)
		}
		s.rows = len(col)
		s.names = append(s.names, name)
		s.columns[name] = col
	}
	if s.rows < 0 {
		s.rows = 0
	}
	return s, nil
}

// FromColumns builds a fields-mode store with columns in lexical order.
func FromColumns(columns map[string][]float64) (*Store, error) {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return NewStore(names, columns)
}

// FromValues builds a scalar-mode store.
func FromValues(values []float64) *Store {
	return &Store{values: values, scalar: true, rows: len(values)}
}

// Len returns the number of rows.
func (s *Store) Len() int { return s.rows }

// IsScalar reports whether the store was accumulated in scalar mode.
func (s *Store) IsScalar() bool { return s.scalar }

// Names returns the column names in first-appearance order.
func (s *Store) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// SortedNames returns the column names in lexical order.
func (s *Store) SortedNames() []string {
	out := s.Names()
	sort.Strings(out)
	return out
}

// Has reports whether a column exists.
func (s *Store) Has(name string) bool {
	_, ok := s.columns[name]
	return ok
}

// Column returns a copy of the named column.
func (s *Store) Column(name string) ([]float64, error) {
	if s.scalar {
		return nil, errors.Newf(errors.ErrorTypeRefinement,
			"scalar crops have no column %q", name)
	}
	col, ok := s.columns[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "no column %q in crops", name).
			WithDetail("column", name)
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out, nil
}

// Values returns a copy of the scalar array; ok is false for fields-mode stores.
func (s *Store) Values() (values []float64, ok bool) {
	if !s.scalar {
		return nil, false
	}
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out, true
}

// Row returns the values of row i keyed by column name.
func (s *Store) Row(i int) (map[string]float64, error) {
	if i < 0 || i >= s.rows {
		return nil, fmt.Errorf("index %d out of range [0, %d)", i, s.rows)
	}
	row := make(map[string]float64, len(s.names))
	for _, name := range s.names {
		row[name] = s.columns[name][i]
	}
	return row, nil
}

// Equal compares two stores, treating undefined values as equal to each other.
func (s *Store) Equal(o *Store) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.scalar != o.scalar || s.rows != o.rows {
		return false
	}
	if s.scalar {
		return floatsEqual(s.values, o.values)
	}
	if len(s.names) != len(o.names) {
		return false
	}
	for _, name := range s.names {
		other, ok := o.columns[name]
		if !ok || !floatsEqual(s.columns[name], other) {
			return false
		}
	}
	return true
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] && !(math.IsNaN(a[i]) && math.IsNaN(b[i])) {
			return false
		}
	}
	return true
}
