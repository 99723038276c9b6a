package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracer_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	shutdown, err := InitTracer(Options{
		ServiceName:    "webcore-test",
		ServiceVersion: "1.2.3",
		Writer:         &buf,
		Sync:           true,
	}, logger)
	if err != nil {
		t.Fatalf("InitTracer() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "unit-span")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"unit-span", "webcore-test", "1.2.3"} {
		if !strings.Contains(out, want) {
			t.Errorf("exported output missing %q", want)
		}
	}
}
