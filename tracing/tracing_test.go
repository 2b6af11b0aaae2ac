package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	traceapi "go.opentelemetry.io/otel/trace"
)

func TestNoExporterIsNoop(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "none")
	tp, err := NewTracerProvider(context.Background())
	require.NoError(t, err)
	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestUnknownExporter(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	_, err := NewTracerProvider(context.Background())
	require.ErrorContains(t, err, "unknown or unsupported exporter")
}

func TestFileExporter(t *testing.T) {
	out := filepath.Join(t.TempDir(), "traces.json")
	t.Setenv("OTEL_TRACES_EXPORTER", "file")
	t.Setenv("OTEL_EXPORTER_FILE_PATH", out)

	ctx := context.Background()
	tp, err := NewTracerProvider(ctx)
	require.NoError(t, err)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp.(traceapi.TracerProvider))
	defer otel.SetTracerProvider(prev)

	_, span := Span(ctx, "CoreAPI.UnixfsAPI", "Add")
	span.End()
	require.NoError(t, tp.Shutdown(ctx))

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(b), "CoreAPI.UnixfsAPI.Add")
}
