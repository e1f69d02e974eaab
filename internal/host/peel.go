package host

import (
	"math"
	"sort"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/harvest/pkg/crops"
	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/harvest"
)

// Numeric converts a decoded JSON value to a float. Booleans map to 0 and 1;
// null is Undefined.
func Numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case nil:
		return crops.Undefined, true
	}
	return 0, false
}

// Truthy reports whether obj[field] is a non-zero number or true.
func Truthy(field string) func(Object) bool {
	return func(obj Object) bool {
		x, ok := Numeric(obj[field])
		return ok && x != 0 && !math.IsNaN(x)
	}
}

// FieldPeeler peels the named fields of an object. With no names it peels
// every numeric field. Array fields expand the object into one record per
// element; shorter arrays and scalar fields are padded.
func FieldPeeler(names ...string) harvest.Peeler[Object] {
	return func(obj Object) (crops.Record, error) {
		keys := names
		if len(keys) == 0 {
			keys = numericKeys(obj)
		}
		if len(keys) == 0 {
			return nil, harvest.ErrSkip
		}

		fields := make(crops.Fields, len(keys))
		arrays := make(map[string][]float64)
		rows := 0
		for _, k := range keys {
			v, present := obj[k]
			if !present {
				fields[k] = crops.Undefined
				continue
			}
			if list, ok := v.([]any); ok {
				col, err := numericList(k, list)
				if err != nil {
					return nil, err
				}
				arrays[k] = col
				rows = max(rows, len(col))
				continue
			}
			x, ok := Numeric(v)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeExtraction, "field %q is not numeric", k).
					WithDetail("value", v)
			}
			fields[k] = x
		}

		if len(arrays) == 0 {
			return fields, nil
		}
		return crops.Sequence(func(yield func(crops.Fields) bool) {
			for i := 0; i < rows; i++ {
				row := make(crops.Fields, len(keys))
				for k, x := range fields {
					row[k] = x
				}
				for k, col := range arrays {
					if i < len(col) {
						row[k] = col[i]
					} else {
						row[k] = crops.Undefined
					}
				}
				if !yield(row) {
					return
				}
			}
		}), nil
	}
}

func numericList(name string, list []any) ([]float64, error) {
	col := make([]float64, len(list))
	for i, v := range list {
		x, ok := Numeric(v)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeExtraction, "element %d of field %q is not numeric", i, name)
		}
		col[i] = x
	}
	return col, nil
}

func numericKeys(obj Object) []string {
	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		if _, ok := Numeric(v); ok && v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
