package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanWithoutInitialize(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "noop")
	span.SetAttribute("module", "tracks")
	span.Finish(nil)
	span.End()

	assert.NotNil(t, ctx)
	assert.False(t, span.Recording())
	assert.NoError(t, Shutdown(context.Background()))
}

func TestStdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Exporter = "stdout"
	cfg.Writer = &buf
	require.NoError(t, Initialize(cfg))

	_, span := StartSpan(context.Background(), "harvest.terminate")
	assert.True(t, span.Recording())
	span.SetAttribute("crops", 3)
	span.SetAttribute("refiners", []string{"tree", "histograms"})
	span.Finish(errors.New("refiner failed"))
	span.End()

	require.NoError(t, Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "harvest.terminate")
	assert.Contains(t, buf.String(), "refiner failed")
}

func TestUnsupportedExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exporter = "jaeger"
	assert.Error(t, Initialize(cfg))
}
