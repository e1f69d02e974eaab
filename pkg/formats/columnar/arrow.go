package columnar

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func writeArrow(w io.Writer, t *table, config *WriterConfig) error {
	mem := memory.NewGoAllocator()
	schema := arrowSchema(t, config.Metadata)

	opts := []ipc.Option{ipc.WithSchema(schema), ipc.WithAllocator(mem)}
	switch config.Compression {
	case "zstd":
		opts = append(opts, ipc.WithZstd())
	case "lz4":
		opts = append(opts, ipc.WithLZ4())
	}

	fw, err := ipc.NewFileWriter(w, opts...)
	if err != nil {
		return fmt.Errorf("failed to create Arrow writer: %w", err)
	}

	record := arrowRecord(mem, schema, t)
	defer record.Release()

	if err := fw.Write(record); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	return fw.Close()
}

func readArrow(data []byte) (*table, error) {
	mem := memory.NewGoAllocator()
	reader, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	records := make([]arrow.Record, 0, reader.NumRecords())
	for i := 0; i < reader.NumRecords(); i++ {
		rec, err := reader.Record(i)
		if err != nil {
			return nil, err
		}
		// the reader reuses the record on the next call
		rec.Retain()
		defer rec.Release()
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, errors.New("arrow file holds no record batch")
	}

	tbl := array.NewTableFromRecords(reader.Schema(), records)
	defer tbl.Release()
	return fromArrowTable(tbl)
}
