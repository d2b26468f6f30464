// Package handler exposes the filing service and the draft store over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	draftdomain "eviction-tracker/efiling/internal/draft/domain"
	"eviction-tracker/efiling/internal/efile/domain"
	"eviction-tracker/efiling/internal/efile/service"
	"eviction-tracker/efiling/internal/resilience/breaker"
	teldomain "eviction-tracker/efiling/internal/telemetry/domain"
)

const defaultEventLimit = 100

// Filings is the filing service surface the handler needs.
type Filings interface {
	BuildAndSubmit(ctx context.Context, form domain.FormInput) (*service.SubmitResult, error)
	CheckStatus(ctx context.Context, envelopeID string) (domain.StatusReport, error)
	Events(ctx context.Context, envelopeID string, limit int32) ([]*teldomain.Event, error)
	ResetCircuit()
	CircuitState() breaker.State
	CircuitRetryAfter() time.Duration
}

// Drafts is the draft store surface the handler needs.
type Drafts interface {
	Save(ctx context.Context, d draftdomain.Draft) (draftdomain.Draft, error)
	Get(ctx context.Context, id string) (draftdomain.Draft, error)
	Load(ctx context.Context) ([]draftdomain.Draft, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Handler serves the /v1 API.
type Handler struct {
	filings Filings
	drafts  Drafts
}

// New returns a Handler.
func New(filings Filings, drafts Drafts) *Handler {
	return &Handler{filings: filings, drafts: drafts}
}

// Routes mounts the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/v1", func(api chi.Router) {
		api.Post("/filings", h.submitFiling)
		api.Get("/envelopes/{envelopeID}/status", h.envelopeStatus)
		api.Get("/envelopes/{envelopeID}/events", h.envelopeEvents)

		api.Get("/drafts", h.listDrafts)
		api.Delete("/drafts", h.clearDrafts)
		api.Post("/drafts", h.createDraft)
		api.Get("/drafts/{draftID}", h.getDraft)
		api.Put("/drafts/{draftID}", h.putDraft)
		api.Delete("/drafts/{draftID}", h.deleteDraft)

		api.Get("/admin/breaker", h.breakerState)
		api.Post("/admin/breaker/reset", h.resetBreaker)
	})
}

func (h *Handler) submitFiling(w http.ResponseWriter, r *http.Request) {
	var form domain.FormInput
	if err := readJSON(r, &form); err != nil {
		writeError(w, r, http.StatusBadRequest, errorDetail{Code: "bad_json", Message: err.Error()})
		return
	}
	res, err := h.filings.BuildAndSubmit(r.Context(), form)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) envelopeStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.filings.CheckStatus(r.Context(), chi.URLParam(r, "envelopeID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) envelopeEvents(w http.ResponseWriter, r *http.Request) {
	limit := int32(defaultEventLimit)
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, errorDetail{Code: "bad_request", Message: "limit must be a positive integer"})
			return
		}
		limit = int32(n)
	}
	events, err := h.filings.Events(r.Context(), chi.URLParam(r, "envelopeID"), limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if events == nil {
		events = []*teldomain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) listDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.drafts.Load(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if drafts == nil {
		drafts = []draftdomain.Draft{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

func (h *Handler) clearDrafts(w http.ResponseWriter, r *http.Request) {
	if err := h.drafts.Clear(r.Context()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	h.saveDraft(w, r, "", http.StatusCreated)
}

func (h *Handler) putDraft(w http.ResponseWriter, r *http.Request) {
	h.saveDraft(w, r, chi.URLParam(r, "draftID"), http.StatusOK)
}

func (h *Handler) saveDraft(w http.ResponseWriter, r *http.Request, id string, status int) {
	var d draftdomain.Draft
	if err := readJSON(r, &d); err != nil {
		writeError(w, r, http.StatusBadRequest, errorDetail{Code: "bad_json", Message: err.Error()})
		return
	}
	if id != "" {
		if d.ID != "" && d.ID != id {
			writeError(w, r, http.StatusBadRequest, errorDetail{Code: "bad_request", Message: "draft id does not match the path"})
			return
		}
		d.ID = id
	}
	saved, err := h.drafts.Save(r.Context(), d)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, status, saved)
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.drafts.Get(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.drafts.Delete(r.Context(), strings.TrimSpace(chi.URLParam(r, "draftID"))); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) breakerState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"state": h.filings.CircuitState().String()})
}

func (h *Handler) resetBreaker(w http.ResponseWriter, r *http.Request) {
	h.filings.ResetCircuit()
	writeJSON(w, http.StatusOK, map[string]string{"state": h.filings.CircuitState().String()})
}
