package metrics

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
)

func TestLogSink_Line(t *testing.T) {
	tests := []struct {
		prefix string
		sample domain.Sample
		want   string
	}{
		{"webcore", domain.Sample{Name: "busy_threads", Value: 3}, "sample#webcore.busy_threads=3"},
		{"", domain.Sample{Name: "busy_threads", Value: 0}, "sample#busy_threads=0"},
		{"webcore", domain.Sample{Name: "request_duration_ms", Value: 12.5}, "sample#webcore.request_duration_ms=12.5"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			s := NewLogSink(nil, tt.prefix)
			if got := s.Line(tt.sample); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogSink_Emit(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)), "webcore")

	s.Emit(domain.Sample{Name: "busy_threads", Value: 4})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if rec["msg"] != "sample#webcore.busy_threads=4" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["value"] != float64(4) {
		t.Errorf("value = %v", rec["value"])
	}
}

func TestPrometheus_Emit(t *testing.T) {
	p := NewPrometheus(DefaultPrometheusConfig())

	p.Emit(domain.Sample{Name: domain.SampleBusyThreads, Value: 7})
	p.Emit(domain.Sample{Name: domain.SampleBusyThreads, Value: 3})

	if got := testutil.ToFloat64(p.Samples.WithLabelValues(domain.SampleBusyThreads)); got != 3 {
		t.Errorf("gauge = %v, want 3", got)
	}
}

func TestPrometheus_Handler(t *testing.T) {
	p := NewPrometheus(DefaultPrometheusConfig())
	p.Emit(domain.Sample{Name: domain.SampleBusyThreads, Value: 2})
	p.ObserveRequest(http.StatusOK, 0.01)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `webcore_sample{name="busy_threads"} 2`) {
		t.Errorf("metrics output missing gauge:\n%s", body)
	}
	if !strings.Contains(body, `webcore_request_duration_seconds_count{status_class="2xx"} 1`) {
		t.Errorf("metrics output missing histogram:\n%s", body)
	}
}

func TestPrometheus_CountFailure(t *testing.T) {
	p := NewPrometheus(DefaultPrometheusConfig())
	p.CountFailure("refresh")
	p.CountFailure("refresh")
	p.CountFailure("pipeline")

	if got := testutil.ToFloat64(p.Failures.WithLabelValues("refresh")); got != 2 {
		t.Errorf("refresh failures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.Failures.WithLabelValues("pipeline")); got != 1 {
		t.Errorf("pipeline failures = %v, want 1", got)
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{200: "2xx", 302: "3xx", 404: "4xx", 503: "5xx", 0: "unknown", 700: "unknown"}
	for status, want := range cases {
		if got := StatusClass(status); got != want {
			t.Errorf("StatusClass(%d) = %q, want %q", status, got, want)
		}
	}
}

func TestMulti_Emit(t *testing.T) {
	var got []float64
	collect := ports.SinkFunc(func(s domain.Sample) { got = append(got, s.Value) })

	Multi{collect, collect}.Emit(domain.Sample{Name: "x", Value: 1})

	if len(got) != 2 {
		t.Errorf("emitted %d times, want 2", len(got))
	}
}
