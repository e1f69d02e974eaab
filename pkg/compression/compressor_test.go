package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte("pt,eta,phi 1.25,0.3,-2.1\n"), 200)

	algorithms := []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2}
	levels := []Level{Fastest, Default, Better, Best}

	for _, algorithm := range algorithms {
		for _, level := range levels {
			codec, err := NewCodec(&Config{Algorithm: algorithm, Level: level})
			require.NoError(t, err, "algorithm %s", algorithm)

			compressed, err := Compress(codec, original)
			require.NoError(t, err, "algorithm %s level %d", algorithm, level)

			decompressed, err := Decompress(codec, compressed)
			require.NoError(t, err, "algorithm %s level %d", algorithm, level)
			assert.Equal(t, original, decompressed, "algorithm %s level %d", algorithm, level)

			if algorithm != None {
				assert.Less(t, len(compressed), len(original), "algorithm %s should shrink repetitive data", algorithm)
			}
		}
	}
}

func TestCodecExtensions(t *testing.T) {
	want := map[Algorithm]string{
		None:   "",
		Gzip:   ".gz",
		Snappy: ".sz",
		LZ4:    ".lz4",
		Zstd:   ".zst",
		S2:     ".s2",
	}
	for algorithm, ext := range want {
		codec, err := NewCodec(&Config{Algorithm: algorithm})
		require.NoError(t, err)
		assert.Equal(t, ext, codec.Extension())
		assert.Equal(t, algorithm, codec.Algorithm())
		assert.Equal(t, Default, codec.Level())
	}
}

func TestNewCodecDefaults(t *testing.T) {
	codec, err := NewCodec(nil)
	require.NoError(t, err)
	assert.Equal(t, None, codec.Algorithm())

	codec, err = NewCodec(&Config{})
	require.NoError(t, err)
	assert.Equal(t, None, codec.Algorithm())

	_, err = NewCodec(&Config{Algorithm: "brotli"})
	assert.Error(t, err)
}
