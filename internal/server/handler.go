package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
)

// PipelineHandler serves requests by running them through the website
// algorithm and writing the resulting response.
func PipelineHandler(runner ports.PipelineRunner, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := GetRequestID(r.Context())
		rc := domain.NewRequestContext(&domain.Request{
			ID:  id,
			Raw: r,
		})
		rc = runner.Run(r.Context(), rc)

		resp := rc.Response
		if resp == nil {
			// No step produced a response; never leave the client hanging.
			logger.Error("pipeline produced no response",
				slog.String("request_id", id),
				slog.String("path", r.URL.Path))
			resp = domain.NewResponse(http.StatusInternalServerError, []byte(http.StatusText(http.StatusInternalServerError)))
		}
		writeResponse(w, r, resp)
	})
}

func writeResponse(w http.ResponseWriter, r *http.Request, resp *domain.Response) {
	h := w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if len(resp.Body) > 0 && h.Get("Content-Type") == "" {
		h.Set("Content-Type", http.DetectContentType(resp.Body))
	}
	h.Set("Content-Length", strconv.Itoa(len(resp.Body)))

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		w.Write(resp.Body)
	}
}
