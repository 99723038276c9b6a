package domain

// Sample names emitted by the monitors.
const (
	SampleBusyThreads     = "busy_threads"
	SampleRequestDuration = "request_duration_ms"
)

// Sample is a single monitoring measurement.
type Sample struct {
	Name  string
	Value float64
}
