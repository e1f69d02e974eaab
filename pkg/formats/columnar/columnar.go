// Package columnar writes crops stores as tree files.
//
// Every column becomes one float64 field. Undefined entries are stored as
// NaN in the binary formats and as null in JSON lines. A scalar store is
// written as a single column named by WriterConfig.ScalarName.
package columnar

import (
	"fmt"
	"io"
	"strings"

	"github.com/ajitpratap0/harvest/pkg/crops"
	"github.com/ajitpratap0/harvest/pkg/errors"
)

// Format represents a tree file format
type Format string

const (
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Arrow is the Apache Arrow IPC file format
	Arrow Format = "arrow"
	// Avro is the Apache Avro object container format
	Avro Format = "avro"
	// JSONLines writes one JSON object per row
	JSONLines Format = "jsonl"
)

// DefaultScalarName names the single column of a scalar store.
const DefaultScalarName = "value"

// WriterConfig configures tree writers
type WriterConfig struct {
	Format      Format `yaml:"format" json:"format"`
	Compression string `yaml:"compression" json:"compression"`
	ScalarName  string `yaml:"scalar_name" json:"scalar_name"`
	// Metadata is stored in the file footer where the format supports it
	Metadata map[string]string `yaml:"metadata" json:"metadata"`
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Format:      Parquet,
		Compression: "snappy",
		ScalarName:  DefaultScalarName,
	}
}

// Write encodes store to w in the configured format and returns the number
// of rows written. w is not closed.
func Write(w io.Writer, store *crops.Store, config *WriterConfig) (int, error) {
	if config == nil {
		config = DefaultWriterConfig()
	}
	if store == nil {
		return 0, errors.New(errors.ErrorTypeValidation, "no crops to write")
	}
	t, err := tableOf(store, config.ScalarName)
	if err != nil {
		return 0, err
	}

	// writers below may close what they are given; the caller owns w
	sink := struct{ io.Writer }{w}

	switch config.Format {
	case Parquet, "":
		err = writeParquet(sink, t, config)
	case Arrow:
		err = writeArrow(sink, t, config)
	case Avro:
		err = writeAvro(sink, t, config)
	case JSONLines:
		err = writeJSONLines(sink, t)
	default:
		return 0, errors.Newf(errors.ErrorTypeConfig, "unsupported tree format: %s", config.Format)
	}
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to write tree").
			WithDetail("format", string(config.Format))
	}
	return t.rows, nil
}

// Read decodes a tree written by Write back into a fields-mode store.
func Read(r io.Reader, format Format) (*crops.Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read tree")
	}

	var t *table
	switch format {
	case Parquet, "":
		t, err = readParquet(data)
	case Arrow:
		t, err = readArrow(data)
	case Avro:
		t, err = readAvro(data)
	case JSONLines:
		t, err = readJSONLines(data)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported tree format: %s", format)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to decode tree").
			WithDetail("format", string(format))
	}
	return crops.NewStore(t.names, t.columns)
}

// FormatInfo provides information about tree formats
type FormatInfo struct {
	Format        Format
	Name          string
	FileExtension string
	MIMEType      string
}

// GetFormatInfo returns information about a tree format
func GetFormatInfo(format Format) *FormatInfo {
	switch format {
	case Parquet:
		return &FormatInfo{Parquet, "Apache Parquet", ".parquet", "application/x-parquet"}
	case Arrow:
		return &FormatInfo{Arrow, "Apache Arrow", ".arrow", "application/x-arrow"}
	case Avro:
		return &FormatInfo{Avro, "Apache Avro", ".avro", "application/x-avro"}
	case JSONLines:
		return &FormatInfo{JSONLines, "JSON Lines", ".jsonl", "application/x-ndjson"}
	default:
		return nil
	}
}

// ParseFormat maps a configuration string to a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return Parquet, nil
	}
	if f == "json" || f == "ndjson" {
		return JSONLines, nil
	}
	if GetFormatInfo(f) == nil {
		return "", fmt.Errorf("unsupported tree format: %s", s)
	}
	return f, nil
}

// table is the column-major view shared by all encoders.
type table struct {
	names   []string
	columns map[string][]float64
	rows    int
}

func tableOf(store *crops.Store, scalarName string) (*table, error) {
	if values, ok := store.Values(); ok {
		if scalarName == "" {
			scalarName = DefaultScalarName
		}
		return &table{
			names:   []string{scalarName},
			columns: map[string][]float64{scalarName: values},
			rows:    len(values),
		}, nil
	}

	// trees list their branches lexically
	names := store.SortedNames()
	t := &table{names: names, columns: make(map[string][]float64, len(names)), rows: store.Len()}
	for _, name := range names {
		col, err := store.Column(name)
		if err != nil {
			return nil, err
		}
		t.columns[name] = col
	}
	return t, nil
}
