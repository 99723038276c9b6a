package domain

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Request is the parsed view of an inbound HTTP request.
type Request struct {
	ID         string
	Method     string
	Scheme     string
	Host       string
	Path       string
	RawQuery   string
	RemoteAddr string
	Header     http.Header

	// Raw is the original request; nil when the context is built by hand.
	Raw *http.Request
}

// Response is the outbound response built by the pipeline.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewResponse creates a response with an empty header map.
func NewResponse(status int, body []byte) *Response {
	return &Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       body,
	}
}

// Website is the per-process site information attached to every request.
type Website struct {
	Name            string
	Version         string
	CanonicalScheme string
	CanonicalHost   string
	Platforms       []*Platform
}

// ResourceHandler produces the response for a resolved resource.
type ResourceHandler func(ctx context.Context, rc *RequestContext) (*Response, error)

// Resource is what dispatch resolved the request path to.
type Resource struct {
	Name    string
	Handler ResourceHandler
}

// RequestContext is the per-request state threaded through every step.
// It is created per inbound request and never shared across requests.
type RequestContext struct {
	Request  *Request
	Website  *Website
	Values   map[string]Value
	Resource *Resource

	// Response is set once a step has produced the outbound response.
	Response *Response
	// Exception is set when a normal step failed.
	Exception error

	StartedAt time.Time
	Duration  time.Duration

	logFields map[string]string
}

// NewRequestContext creates a context for req.
func NewRequestContext(req *Request) *RequestContext {
	return &RequestContext{
		Request:   req,
		Values:    make(map[string]Value),
		logFields: make(map[string]string),
	}
}

// Set stores a context value.
func (rc *RequestContext) Set(key string, v Value) {
	if rc.Values == nil {
		rc.Values = make(map[string]Value)
	}
	rc.Values[key] = v
}

// Get returns a context value; missing keys yield null and false.
func (rc *RequestContext) Get(key string) (Value, bool) {
	v, ok := rc.Values[key]
	return v, ok
}

// Status returns the response status, or 0 when no response exists yet.
func (rc *RequestContext) Status() int {
	if rc.Response == nil {
		return 0
	}
	return rc.Response.StatusCode
}

// AddLogField attaches a key/value emitted with the request's result log line.
// Empty values are ignored.
func (rc *RequestContext) AddLogField(key, value string) {
	if value == "" {
		return
	}
	if rc.logFields == nil {
		rc.logFields = make(map[string]string)
	}
	rc.logFields[key] = value
}

// LogFieldKeys returns the attached log field keys in sorted order.
func (rc *RequestContext) LogFieldKeys() []string {
	keys := make([]string, 0, len(rc.logFields))
	for k := range rc.logFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LogField returns an attached log field.
func (rc *RequestContext) LogField(key string) string {
	return rc.logFields[key]
}
