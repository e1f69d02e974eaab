package columnar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

func arrowSchema(t *table, meta map[string]string) *arrow.Schema {
	fields := make([]arrow.Field, len(t.names))
	for i, name := range t.names {
		fields[i] = arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64}
	}
	var md *arrow.Metadata
	if len(meta) > 0 {
		m := arrow.MetadataFrom(meta)
		md = &m
	}
	return arrow.NewSchema(fields, md)
}

// arrowRecord builds one record batch holding the whole table.
func arrowRecord(mem memory.Allocator, schema *arrow.Schema, t *table) arrow.Record {
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	for i, name := range t.names {
		builder.Field(i).(*array.Float64Builder).AppendValues(t.columns[name], nil)
	}
	return builder.NewRecord()
}

func writeParquet(w io.Writer, t *table, config *WriterConfig) error {
	mem := memory.NewGoAllocator()
	schema := arrowSchema(t, config.Metadata)

	props := parquet.NewWriterProperties(
		parquet.WithCompression(parquetCompression(config.Compression)),
		parquet.WithDictionaryDefault(false),
		parquet.WithStats(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(mem),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create Parquet writer: %w", err)
	}

	record := arrowRecord(mem, schema, t)
	defer record.Release()

	if t.rows > 0 {
		if err := fw.Write(record); err != nil {
			_ = fw.Close()
			return fmt.Errorf("failed to write record batch: %w", err)
		}
	}
	return fw.Close()
}

func parquetCompression(name string) compress.Compression {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy
	case "gzip":
		return compress.Codecs.Gzip
	case "zstd":
		return compress.Codecs.Zstd
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "brotli":
		return compress.Codecs.Brotli
	default:
		return compress.Codecs.Uncompressed
	}
}

func readParquet(data []byte) (*table, error) {
	fr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	mem := memory.NewGoAllocator()
	reader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, err
	}
	tbl, err := reader.ReadTable(context.Background())
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	return fromArrowTable(tbl)
}

func fromArrowTable(tbl arrow.Table) (*table, error) {
	t := &table{columns: make(map[string][]float64), rows: int(tbl.NumRows())}
	for i := 0; i < int(tbl.NumCols()); i++ {
		col := tbl.Column(i)
		name := col.Name()
		values := make([]float64, 0, col.Len())
		for _, chunk := range col.Data().Chunks() {
			f64, ok := chunk.(*array.Float64)
			if !ok {
				return nil, fmt.Errorf("column %q has type %s, expected float64", name, chunk.DataType())
			}
			values = append(values, f64.Float64Values()...)
		}
		t.names = append(t.names, name)
		t.columns[name] = values
	}
	return t, nil
}
