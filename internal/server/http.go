package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	efilehandler "eviction-tracker/efiling/internal/efile/handler"
	"eviction-tracker/efiling/internal/server/middleware"
	"eviction-tracker/efiling/internal/telemetry"
)

// requestTimeout bounds one API request. It covers a full retry chain against the e-filing service.
const requestTimeout = 3 * time.Minute

// HTTPDeps holds the dependencies of the HTTP API.
type HTTPDeps struct {
	Filings efilehandler.Filings
	Drafts  efilehandler.Drafts
	// Health answers /healthz. If nil, /healthz always returns 200.
	Health http.Handler
	// Events receives one http.request event per API call. May be nil.
	Events telemetry.EventEmitter
}

// NewRouter returns the chi router serving /healthz and the /v1 API.
func NewRouter(deps HTTPDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Telemetry(deps.Events, map[string]bool{"/healthz": true}))

	if deps.Health != nil {
		r.Method(http.MethodGet, "/healthz", deps.Health)
	} else {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	}
	r.Group(func(api chi.Router) {
		api.Use(chimw.Timeout(requestTimeout))
		efilehandler.New(deps.Filings, deps.Drafts).Routes(api)
	})
	return r
}
