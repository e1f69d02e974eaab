// Package compression provides stream codecs for refiner artifacts.
//
// A Codec wraps an artifact writer so that trees, histograms and reports can be
// stored compressed in any output scope. Each codec carries the file extension
// appended to artifact names.
//
// # Algorithm Selection
//
//   - Snappy/S2: fastest, moderate ratio
//   - LZ4: very fast, decent ratio
//   - Zstd: best ratio at good speed
//   - Gzip: widest tool compatibility
//
// # Basic Usage
//
//	codec, err := compression.NewCodec(&compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Better,
//	})
//	w, err := codec.Writer(file)
//	defer w.Close()
package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy framed compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// Codec produces compressing writers and decompressing readers for one
// algorithm. Codecs are safe for concurrent use; the streams they return are not.
type Codec interface {
	// Writer wraps dst; closing the writer flushes the stream but leaves dst open.
	Writer(dst io.Writer) (io.WriteCloser, error)

	// Reader wraps src for decompression.
	Reader(src io.Reader) (io.ReadCloser, error)

	// Extension is the file suffix for artifacts, including the dot.
	Extension() string

	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm

	// Level returns the compression level configured.
	Level() Level
}

// Config represents codec configuration.
type Config struct {
	Algorithm Algorithm `yaml:"algorithm" json:"algorithm"`
	Level     Level     `yaml:"level" json:"level"`
}

// DefaultConfig returns an uncompressed configuration.
func DefaultConfig() *Config {
	return &Config{
		Algorithm: None,
		Level:     Default,
	}
}

// NewCodec creates a codec for the configured algorithm.
// If config is nil, default configuration is used.
func NewCodec(config *Config) (Codec, error) {
	if config == nil {
		config = DefaultConfig()
	}
	level := config.Level
	if level == 0 {
		level = Default
	}
	base := baseCodec{algorithm: config.Algorithm, level: level}

	switch config.Algorithm {
	case None, "":
		base.algorithm = None
		return &noneCodec{base}, nil
	case Gzip:
		return &gzipCodec{base}, nil
	case Snappy:
		return &snappyCodec{base}, nil
	case LZ4:
		return &lz4Codec{base}, nil
	case Zstd:
		return &zstdCodec{base}, nil
	case S2:
		return &s2Codec{base}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

// Compress encodes data in memory with codec.
func Compress(codec Codec, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := codec.Writer(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress decodes data in memory with codec.
func Decompress(codec Codec, data []byte) ([]byte, error) {
	r, err := codec.Reader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type baseCodec struct {
	algorithm Algorithm
	level     Level
}

// Algorithm returns the compression algorithm
func (bc baseCodec) Algorithm() Algorithm {
	return bc.algorithm
}

// Level returns the compression level
func (bc baseCodec) Level() Level {
	return bc.level
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// None codec (no compression)
type noneCodec struct{ baseCodec }

func (noneCodec) Writer(dst io.Writer) (io.WriteCloser, error) { return nopWriteCloser{dst}, nil }
func (noneCodec) Reader(src io.Reader) (io.ReadCloser, error)  { return io.NopCloser(src), nil }
func (noneCodec) Extension() string                             { return "" }

// Gzip codec
type gzipCodec struct{ baseCodec }

func (c gzipCodec) Writer(dst io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(dst, mapGzipLevel(c.level))
}

func (gzipCodec) Reader(src io.Reader) (io.ReadCloser, error) { return gzip.NewReader(src) }
func (gzipCodec) Extension() string                            { return ".gz" }

// Snappy codec
type snappyCodec struct{ baseCodec }

func (snappyCodec) Writer(dst io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(dst), nil
}

func (snappyCodec) Reader(src io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(snappy.NewReader(src)), nil
}

func (snappyCodec) Extension() string { return ".sz" }

// LZ4 codec
type lz4Codec struct{ baseCodec }

func (c lz4Codec) Writer(dst io.Writer) (io.WriteCloser, error) {
	w := lz4.NewWriter(dst)
	if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(c.level))); err != nil {
		return nil, err
	}
	return w, nil
}

func (lz4Codec) Reader(src io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(src)), nil
}

func (lz4Codec) Extension() string { return ".lz4" }

// Zstd codec
type zstdCodec struct{ baseCodec }

func (c zstdCodec) Writer(dst io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(dst, zstd.WithEncoderLevel(mapZstdLevel(c.level)))
}

func (zstdCodec) Reader(src io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func (zstdCodec) Extension() string { return ".zst" }

// S2 codec (Snappy-compatible but better compression)
type s2Codec struct{ baseCodec }

func (c s2Codec) Writer(dst io.Writer) (io.WriteCloser, error) {
	opts := []s2.WriterOption{}
	switch c.level {
	case Better:
		opts = append(opts, s2.WriterBetterCompression())
	case Best:
		opts = append(opts, s2.WriterBestCompression())
	}
	return s2.NewWriter(dst, opts...), nil
}

func (s2Codec) Reader(src io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(s2.NewReader(src)), nil
}

func (s2Codec) Extension() string { return ".s2" }

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
