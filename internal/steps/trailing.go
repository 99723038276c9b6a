package steps

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tjfontaine/webcore/internal/core/domain"
)

// getResponseForException turns rc.Exception into a response. HTTPErrors
// keep their status; anything else is a 500 whose detail stays in the log.
func (b *builtins) getResponseForException(_ context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	if rc.Exception == nil {
		return nil, nil
	}

	status := domain.StatusCode(rc.Exception)
	body := http.StatusText(status)

	var httpErr *domain.HTTPError
	if errors.As(rc.Exception, &httpErr) && status < 500 && httpErr.Message != "" {
		body = httpErr.Message
	}

	resp := domain.NewResponse(status, []byte(body))
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if httpErr != nil && httpErr.Location != "" {
		resp.Header.Set("Location", httpErr.Location)
	}
	rc.Response = resp
	return nil, nil
}

func (b *builtins) xFrameOptions(_ context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	if rc.Response == nil {
		return nil, nil
	}
	if rc.Response.Header == nil {
		rc.Response.Header = make(http.Header)
	}
	if rc.Response.Header.Get("X-Frame-Options") == "" {
		rc.Response.Header.Set("X-Frame-Options", "SAMEORIGIN")
	}
	return nil, nil
}

// logTracebackFor5xx logs server errors with the failure that caused them.
func (b *builtins) logTracebackFor5xx(ctx context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	if rc.Status() < 500 {
		return nil, nil
	}

	attrs := []slog.Attr{
		slog.String("request_id", requestID(rc)),
		slog.Int("status", rc.Status()),
	}
	if rc.Exception != nil {
		attrs = append(attrs, slog.String("error", rc.Exception.Error()))
		var pe *domain.PanicError
		if errors.As(rc.Exception, &pe) {
			attrs = append(attrs, slog.String("stack", string(pe.Stack)))
		}
	} else {
		attrs = append(attrs, slog.String("body", string(rc.Response.Body)))
	}
	b.logger.LogAttrs(ctx, slog.LevelError, "server error", attrs...)
	return nil, nil
}

// logTracebackForException logs a failure that no step turned into a
// response.
func (b *builtins) logTracebackForException(ctx context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	if rc.Exception == nil || rc.Response != nil {
		return nil, nil
	}
	b.logger.LogAttrs(ctx, slog.LevelError, "unhandled request failure",
		slog.String("request_id", requestID(rc)),
		slog.String("error", rc.Exception.Error()))
	return nil, nil
}

// logResult writes the one log line every request gets.
func (b *builtins) logResult(ctx context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	var method, path string
	if rc.Request != nil {
		method, path = rc.Request.Method, rc.Request.Path
	}
	attrs := []slog.Attr{
		slog.String("request_id", requestID(rc)),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", rc.Status()),
		slog.Duration("duration", b.elapsed(rc)),
	}
	for _, k := range rc.LogFieldKeys() {
		if k == "request_id" {
			continue
		}
		attrs = append(attrs, slog.String(k, rc.LogField(k)))
	}
	b.logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
	return nil, nil
}

func (b *builtins) endTimer(_ context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	rc.Duration = b.elapsed(rc)
	if b.sink != nil {
		b.sink.Emit(domain.Sample{
			Name:  domain.SampleRequestDuration,
			Value: float64(rc.Duration.Microseconds()) / 1000,
		})
	}
	return nil, nil
}

func (b *builtins) elapsed(rc *domain.RequestContext) time.Duration {
	if rc.StartedAt.IsZero() {
		return 0
	}
	return b.now().Sub(rc.StartedAt)
}

func requestID(rc *domain.RequestContext) string {
	if rc.Request == nil {
		return ""
	}
	return rc.Request.ID
}
