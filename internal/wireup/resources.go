package wireup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/steps"
)

// registerResources adds the resources this module serves itself. Page
// rendering belongs to the template layer mounted in front of it.
func registerResources(routes *steps.Routes, a *App) error {
	resources := []struct {
		path, name string
		h          domain.ResourceHandler
	}{
		{"/", "index", a.index},
		{"/version.txt", "version", a.version},
		{"/about/stats.json", "stats", a.stats},
		{"/about/homepage.json", "homepage", a.homepage},
	}
	for _, r := range resources {
		if err := routes.Handle(r.path, r.name, r.h); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) index(_ context.Context, rc *domain.RequestContext) (*domain.Response, error) {
	body := fmt.Sprintf("%s %s\n", rc.Website.Name, rc.Website.Version)
	resp := domain.NewResponse(http.StatusOK, []byte(body))
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return resp, nil
}

func (a *App) version(_ context.Context, rc *domain.RequestContext) (*domain.Response, error) {
	resp := domain.NewResponse(http.StatusOK, []byte(rc.Website.Version+"\n"))
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return resp, nil
}

func (a *App) stats(ctx context.Context, _ *domain.RequestContext) (*domain.Response, error) {
	stats, err := a.Store.GlobalStats(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResponse(stats)
}

// homepage serves the cached top lists; ?limit= caps each list.
func (a *App) homepage(ctx context.Context, rc *domain.RequestContext) (*domain.Response, error) {
	limit := homepageDefaultEntries
	if raw := rc.Request.Raw; raw != nil {
		if v := raw.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, domain.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
			}
			limit = n
		}
	}
	hp, err := a.Store.Homepage(ctx, limit)
	if err != nil {
		return nil, err
	}
	return jsonResponse(hp)
}

func jsonResponse(v any) (*domain.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	resp := domain.NewResponse(http.StatusOK, body)
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}
