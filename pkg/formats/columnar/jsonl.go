package columnar

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"sort"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/harvest/pkg/stats"
)

func writeJSONLines(w io.Writer, t *table) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	row := make(map[string]stats.Float, len(t.names))
	for i := 0; i < t.rows; i++ {
		for _, name := range t.names {
			row[name] = stats.Float(t.columns[name][i])
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func readJSONLines(data []byte) (*table, error) {
	t := &table{columns: make(map[string][]float64)}
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var row map[string]*float64
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		for name := range row {
			if _, ok := t.columns[name]; !ok {
				col := make([]float64, t.rows)
				for i := range col {
					col[i] = math.NaN()
				}
				t.columns[name] = col
				t.names = append(t.names, name)
			}
		}
		for _, name := range t.names {
			v := math.NaN()
			if p := row[name]; p != nil {
				v = *p
			}
			t.columns[name] = append(t.columns[name], v)
		}
		t.rows++
	}
	sort.Strings(t.names)
	return t, nil
}
