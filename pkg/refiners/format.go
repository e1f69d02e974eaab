package refiners

import (
	"math"
	"strconv"
	"strings"
)

// Values holds the replacements available to name and title templates.
type Values map[string]string

// with returns a copy of v extended by kv pairs.
func (v Values) with(kv ...string) Values {
	out := make(Values, len(v)+len(kv)/2)
	for k, val := range v {
		out[k] = val
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

// Format replaces {key} placeholders in template. Unknown keys are left in
// place so a misspelled key stays visible in the output; "{{" and "}}" are
// literal braces.
func Format(template string, values Values) string {
	if !strings.ContainsAny(template, "{}") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				b.WriteString(template[i:])
				return b.String()
			}
			key := template[i+1 : i+1+end]
			if val, ok := values[key]; ok {
				b.WriteString(val)
			} else {
				b.WriteString(template[i : i+2+end])
			}
			i += 1 + end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// moduleValues are the replacements every output refiner offers.
func moduleValues(m Module) Values {
	v := Values{}
	if m != nil {
		v["module.id"] = m.ID()
		v["module.title"] = m.Title()
		v["module.contact"] = m.Contact()
		v["module.expert_level"] = strconv.Itoa(m.ExpertLevel())
	}
	return v
}

// groupValues adds the group replacements. Artifact names join the group
// with "_", display texts with " in group ".
func groupValues(v Values, g Group, display bool) Values {
	key := ""
	if g.Active() {
		if display {
			key = " in group " + g.Name + g.Value
		} else {
			key = "_" + g.Name + g.Value
		}
	}
	return v.with("groupby_key", key, "groupby", g.Name, "groupby_value", g.Value)
}

// FormatValue renders a grouping value the way partition labels show it.
func FormatValue(x float64) string {
	switch {
	case math.IsNaN(x):
		return "nan"
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
}
