package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"eviction-tracker/efiling/internal/telemetry"
	"eviction-tracker/efiling/internal/telemetry/domain"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http.request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
	RequestID  string `json:"request_id,omitempty"`
}

// Telemetry returns middleware that emits an http.request event after each request.
// Best-effort: emits are async and never fail the request. If emitter is nil, the middleware no-ops.
// skipRoutes is the set of route patterns to not emit (e.g. "/healthz").
func Telemetry(emitter telemetry.EventEmitter, skipRoutes map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if emitter == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			if skipRoutes[route] {
				return
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			requestID, _ := GetRequestID(r.Context())
			meta := httpRequestMetadata{
				Method:     r.Method,
				Route:      route,
				StatusCode: status,
				DurationMs: time.Since(start).Milliseconds(),
				ClientIP:   ClientIP(r),
				RequestID:  requestID,
			}
			metaJSON, _ := json.Marshal(meta)
			event := domain.NewEvent(domain.TypeHTTPRequest, "http_middleware")
			event.EnvelopeID = chi.URLParam(r, "envelopeID")
			event.Message = r.Method + " " + route
			event.Metadata = metaJSON
			if status >= http.StatusInternalServerError {
				event.ErrorClass = http.StatusText(status)
			}
			telemetry.EmitAsync(emitter, r.Context(), event)
		})
	}
}
