package steps

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tjfontaine/webcore/internal/core/domain"
)

func (b *builtins) startTimer(_ context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	rc.StartedAt = b.now()
	return nil, nil
}

// parseRequest fills the request fields from the raw http.Request.
func (b *builtins) parseRequest(_ context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	req := rc.Request
	if req == nil {
		return nil, domain.NewHTTPError(http.StatusBadRequest, "no request")
	}
	if raw := req.Raw; raw != nil {
		req.Method = raw.Method
		req.Host = raw.Host
		req.Path = raw.URL.Path
		req.RawQuery = raw.URL.RawQuery
		req.RemoteAddr = raw.RemoteAddr
		req.Header = raw.Header
		switch {
		case raw.Header.Get("X-Forwarded-Proto") != "":
			req.Scheme = strings.ToLower(raw.Header.Get("X-Forwarded-Proto"))
		case raw.TLS != nil:
			req.Scheme = "https"
		default:
			req.Scheme = "http"
		}
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if req.Method == "" {
		return nil, domain.NewHTTPError(http.StatusBadRequest, "missing method")
	}
	if !strings.HasPrefix(req.Path, "/") {
		return nil, domain.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("bad path %q", req.Path))
	}
	if req.Scheme == "" {
		req.Scheme = "http"
	}
	rc.AddLogField("request_id", req.ID)
	return nil, nil
}

func (b *builtins) attachWebsite(_ context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	rc.Website = b.website
	return nil, nil
}

func (b *builtins) respondToOptions(_ context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	if rc.Request.Method != http.MethodOptions {
		return nil, nil
	}
	rc.Response = domain.NewResponse(http.StatusOK, nil)
	rc.Response.Header.Set("Allow", "GET, HEAD, POST, OPTIONS")
	return nil, nil
}

// canonize redirects to the canonical scheme and host. Idempotent methods
// keep their path and query; others are sent to the homepage.
func (b *builtins) canonize(_ context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	site := rc.Website
	if site == nil || site.CanonicalScheme == "" {
		return nil, nil
	}
	req := rc.Request

	badScheme := req.Scheme != site.CanonicalScheme
	badHost := site.CanonicalHost != "" && req.Host != site.CanonicalHost
	if !badScheme && !badHost {
		return nil, nil
	}

	host := site.CanonicalHost
	if host == "" {
		host = req.Host
	}
	url := site.CanonicalScheme + "://" + host
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		url += req.Path
		if req.RawQuery != "" {
			url += "?" + req.RawQuery
		}
	default:
		url += "/"
	}

	rc.Response = domain.NewResponse(http.StatusFound, nil)
	rc.Response.Header.Set("Location", url)
	return nil, nil
}

// populateContext seeds the context values every resource may read.
func (b *builtins) populateContext(_ context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	rc.Set(ContextUsername, domain.NullValue())

	var platforms []*domain.Platform
	if rc.Website != nil {
		platforms = rc.Website.Platforms
	}
	for _, p := range platforms {
		rc.Set(p.Name, domain.PlatformValue(p))
	}
	return nil, nil
}

func (b *builtins) dispatchRequest(ctx context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	res, err := b.resolver.Resolve(ctx, rc.Request)
	if domain.IsNotFound(err) {
		return nil, domain.NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return nil, err
	}
	rc.Resource = res
	rc.AddLogField("resource", res.Name)
	return nil, nil
}

func (b *builtins) getResponseForResource(ctx context.Context, rc *domain.RequestContext) (*domain.RequestContext, error) {
	if rc.Resource == nil || rc.Resource.Handler == nil {
		return nil, domain.NewHTTPError(http.StatusNotFound, "not found")
	}
	resp, err := rc.Resource.Handler(ctx, rc)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("resource %s produced no response", rc.Resource.Name)
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	rc.Response = resp
	return nil, nil
}
