package refiners

import (
	"bufio"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/harvest/pkg/crops"
	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/formats/columnar"
	"github.com/ajitpratap0/harvest/pkg/metrics"
	"github.com/ajitpratap0/harvest/pkg/scope"
)

// Meta describes an artifact for the people validating it.
type Meta struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Contact     string `json:"contact,omitempty"`
	Description string `json:"description,omitempty"`
	Check       string `json:"check,omitempty"`
}

// Texts are the templates an output refiner renders into Meta. Empty fields
// fall back to the refiner's defaults.
type Texts struct {
	Name        string `yaml:"name" json:"name"`
	Title       string `yaml:"title" json:"title"`
	Contact     string `yaml:"contact" json:"contact"`
	Description string `yaml:"description" json:"description"`
	Check       string `yaml:"check" json:"check"`
}

// render formats t, substituting defaults for empty fields.
func (t Texts) render(defaults Texts, v Values) Meta {
	pick := func(s, def string) string {
		if s == "" {
			s = def
		}
		return Format(s, v)
	}
	return Meta{
		Name:        pick(t.Name, defaults.Name),
		Title:       pick(t.Title, defaults.Title),
		Contact:     pick(t.Contact, defaults.Contact),
		Description: pick(t.Description, defaults.Description),
		Check:       pick(t.Check, defaults.Check),
	}
}

const defaultContact = "{module.contact}"

// part is one named column handed to an output refiner.
type part struct {
	name   string
	values []float64
}

// parts lists the columns of store in lexical order. A scalar store yields
// one part named after the columnar default.
func parts(store *crops.Store, exclude ...string) ([]part, error) {
	if values, ok := store.Values(); ok {
		return []part{{name: columnar.DefaultScalarName, values: values}}, nil
	}
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	var out []part
	for _, name := range store.SortedNames() {
		if skip[name] {
			continue
		}
		col, err := store.Column(name)
		if err != nil {
			return nil, err
		}
		out = append(out, part{name: name, values: col})
	}
	return out, nil
}

// column returns a named column, treating a scalar store as having a single
// column named after the columnar default.
func column(store *crops.Store, name string) ([]float64, error) {
	if values, ok := store.Values(); ok && name == columnar.DefaultScalarName {
		return values, nil
	}
	col, err := store.Column(name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeRefinement, "missing column for refiner").
			WithDetail("column", name).
			WithDetail("available", store.SortedNames())
	}
	return col, nil
}

// writeJSON encodes v into dir as <name>.json.
func writeJSON(dir scope.Scope, name string, v any) error {
	key := scope.SaveName(name) + ".json"
	w, err := dir.Create(key)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create artifact").
			WithDetail("artifact", scope.Join(dir.Path(), key))
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetIndent("", "  ")
	err = enc.Encode(v)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write artifact").
			WithDetail("artifact", scope.Join(dir.Path(), key))
	}
	metrics.ArtifactsWritten.WithLabelValues("json").Inc()
	return nil
}
