package crops

import (
	"github.com/ajitpratap0/harvest/pkg/errors"
)

// Predicate computes a row mask from one column.
type Predicate func(parts []float64) []bool

// NonZero keeps rows whose value is not zero. Undefined values are kept.
func NonZero(parts []float64) []bool {
	mask := make([]bool, len(parts))
	for i, v := range parts {
		mask[i] = v != 0
	}
	return mask
}

// Take returns a new store with the rows where mask is true, in their
// original order.
func (s *Store) Take(mask []bool) (*Store, error) {
	if len(mask) != s.rows {
		return nil, errors.Newf(errors.ErrorTypeRefinement,
			"mask has %d entries for %d rows", len(mask), s.rows)
	}

	kept := 0
	for _, keep := range mask {
		if keep {
			kept++
		}
	}

	take := func(col []float64) []float64 {
		out := make([]float64, 0, kept)
		for i, keep := range mask {
			if keep {
				out = append(out, col[i])
			}
		}
		return out
	}

	if s.scalar {
		return FromValues(take(s.values)), nil
	}

	columns := make(map[string][]float64, len(s.names))
	for _, name := range s.names {
		columns[name] = take(s.columns[name])
	}
	return &Store{
		names:   s.Names(),
		columns: columns,
		rows:    kept,
	}, nil
}

// Mask evaluates pred over a column. An empty name uses the scalar array.
func (s *Store) Mask(name string, pred Predicate) ([]bool, error) {
	if pred == nil {
		pred = NonZero
	}

	var parts []float64
	if name == "" {
		values, ok := s.Values()
		if !ok {
			return nil, errors.New(errors.ErrorTypeConfig, "filter on fields crops needs a column name")
		}
		parts = values
	} else {
		col, err := s.Column(name)
		if err != nil {
			return nil, err
		}
		parts = col
	}

	mask := pred(parts)
	if len(mask) != len(parts) {
		return nil, errors.Newf(errors.ErrorTypeRefinement,
			"predicate returned %d entries for %d rows", len(mask), len(parts)).
			WithDetail("column", name)
	}
	return mask, nil
}

// Without returns a store lacking the named columns. Unknown names are ignored.
func (s *Store) Without(names ...string) *Store {
	if s.scalar || len(names) == 0 {
		return s
	}
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}

	out := &Store{columns: make(map[string][]float64, len(s.names)), rows: s.rows}
	for _, name := range s.names {
		if _, skip := drop[name]; skip {
			continue
		}
		out.names = append(out.names, name)
		out.columns[name] = s.columns[name]
	}
	return out
}

// Rename maps an existing column to a new name.
type Rename struct {
	From string
	To   string
}

// Computed derives a new column from the full input store.
type Computed struct {
	To string
	Fn func(*Store) ([]float64, error)
}

// Selection describes a column projection. A selection with no Names, Rename
// or Computed entries keeps every column; Exclude always applies.
type Selection struct {
	Names    []string
	Rename   []Rename
	Computed []Computed
	Exclude  []string
}

// IsZero reports whether the selection would return its input unchanged.
func (sel Selection) IsZero() bool {
	return len(sel.Names) == 0 && len(sel.Rename) == 0 &&
		len(sel.Computed) == 0 && len(sel.Exclude) == 0
}

func (sel Selection) selecting() bool {
	return len(sel.Names) > 0 || len(sel.Rename) > 0 || len(sel.Computed) > 0
}

// Select applies sel and returns the derived store along with the requested
// names that were absent from the input. Absent names are omitted, never fatal.
func (s *Store) Select(sel Selection) (*Store, []string, error) {
	if sel.IsZero() {
		return s, nil, nil
	}
	if s.scalar {
		return nil, nil, errors.New(errors.ErrorTypeRefinement, "cannot select columns from scalar crops")
	}

	wanted := make(map[string]struct{}, len(sel.Names)+len(sel.Rename))
	var missing []string
	for _, name := range sel.Names {
		wanted[name] = struct{}{}
		if !s.Has(name) {
			missing = append(missing, name)
		}
	}
	for _, r := range sel.Rename {
		wanted[r.From] = struct{}{}
		if !s.Has(r.From) {
			missing = append(missing, r.From)
		}
	}

	excluded := make(map[string]struct{}, len(sel.Exclude))
	for _, name := range sel.Exclude {
		excluded[name] = struct{}{}
	}

	out := &Store{columns: make(map[string][]float64), rows: s.rows}
	for _, name := range s.names {
		if _, ok := excluded[name]; ok {
			continue
		}
		if _, ok := wanted[name]; sel.selecting() && !ok {
			continue
		}
		out.names = append(out.names, name)
		out.columns[name] = s.columns[name]
	}

	for _, r := range sel.Rename {
		col, ok := out.columns[r.From]
		if !ok {
			continue
		}
		out.remove(r.From)
		out.put(r.To, col)
	}

	for _, c := range sel.Computed {
		col, err := c.Fn(s)
		if err != nil {
			return nil, missing, errors.Wrap(err, errors.ErrorTypeRefinement, "computed column failed").
				WithDetail("column", c.To)
		}
		if len(col) != s.rows {
			return nil, missing, errors.Newf(errors.ErrorTypeRefinement,
				"computed column %q has %d rows, expected %d", c.To, len(col), s.rows)
		}
		out.put(c.To, col)
	}

	return out, missing, nil
}

func (s *Store) remove(name string) {
	delete(s.columns, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i:i], s.names[i+1:]...)
			return
		}
	}
}

func (s *Store) put(name string, col []float64) {
	if _, exists := s.columns[name]; exists {
		s.remove(name)
	}
	s.names = append(s.names, name)
	s.columns[name] = col
}
