package columnar

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"
)

// avroName maps a column name onto the Avro name grammar [A-Za-z_][A-Za-z0-9_]*.
func avroName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func avroSchema(t *table) (string, []string, error) {
	type field struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	schema := struct {
		Type   string  `json:"type"`
		Name   string  `json:"name"`
		Fields []field `json:"fields"`
	}{Type: "record", Name: "crops"}

	seen := make(map[string]string, len(t.names))
	names := make([]string, len(t.names))
	for i, name := range t.names {
		an := avroName(name)
		if prev, dup := seen[an]; dup {
			return "", nil, fmt.Errorf("columns %q and %q map to the same Avro field %q", prev, name, an)
		}
		seen[an] = name
		names[i] = an
		schema.Fields = append(schema.Fields, field{Name: an, Type: "double"})
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return "", nil, err
	}
	return string(data), names, nil
}

func writeAvro(w io.Writer, t *table, config *WriterConfig) error {
	schema, names, err := avroSchema(t)
	if err != nil {
		return err
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return fmt.Errorf("failed to create Avro codec: %w", err)
	}

	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: avroCompression(config.Compression),
		MetaData:        avroMetadata(t, names, config.Metadata),
	})
	if err != nil {
		return fmt.Errorf("failed to create Avro writer: %w", err)
	}

	const blockRows = 4096
	block := make([]interface{}, 0, blockRows)
	for row := 0; row < t.rows; row++ {
		datum := make(map[string]interface{}, len(names))
		for i, name := range t.names {
			datum[names[i]] = t.columns[name][row]
		}
		block = append(block, datum)
		if len(block) == blockRows {
			if err := ocf.Append(block); err != nil {
				return err
			}
			block = block[:0]
		}
	}
	if len(block) > 0 {
		return ocf.Append(block)
	}
	return nil
}

// avroMetadata records the original column names under "harvest.columns".
func avroMetadata(t *table, names []string, extra map[string]string) map[string][]byte {
	md := make(map[string][]byte, len(extra)+1)
	for k, v := range extra {
		md[k] = []byte(v)
	}
	mapping := make(map[string]string, len(names))
	for i, name := range t.names {
		mapping[names[i]] = name
	}
	if data, err := json.Marshal(mapping); err == nil {
		md["harvest.columns"] = data
	}
	return md
}

func avroCompression(name string) string {
	switch strings.ToLower(name) {
	case "deflate", "gzip":
		return goavro.CompressionDeflateLabel
	case "snappy":
		return goavro.CompressionSnappyLabel
	default:
		return goavro.CompressionNullLabel
	}
}

func readAvro(data []byte) (*table, error) {
	ocf, err := goavro.NewOCFReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var original map[string]string
	if raw, ok := ocf.MetaData()["harvest.columns"]; ok {
		_ = json.Unmarshal(raw, &original)
	}

	var schema struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(ocf.Codec().Schema()), &schema); err != nil {
		return nil, err
	}
	fields := schema.Fields

	t := &table{columns: make(map[string][]float64, len(fields))}
	avroNames := make([]string, len(fields))
	for i, f := range fields {
		name := f.Name
		if o, ok := original[f.Name]; ok {
			name = o
		}
		avroNames[i] = f.Name
		t.names = append(t.names, name)
		t.columns[name] = nil
	}

	for ocf.Scan() {
		datum, err := ocf.Read()
		if err != nil {
			return nil, err
		}
		record, ok := datum.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected Avro datum %T", datum)
		}
		for i, name := range t.names {
			v, _ := record[avroNames[i]].(float64)
			t.columns[name] = append(t.columns[name], v)
		}
		t.rows++
	}
	if err := ocf.Err(); err != nil {
		return nil, err
	}
	for _, name := range t.names {
		if t.columns[name] == nil {
			t.columns[name] = []float64{}
		}
	}
	return t, nil
}
