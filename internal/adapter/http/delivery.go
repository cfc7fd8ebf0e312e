package httpadapter

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleGetDelivery returns aggregated delivery totals, derived rates and
// pacing health for a buy.
func (h *Handler) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetDelivery(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "mediaBuyID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// handleGetReport returns the delivery breakdown over ?range=, defaulting to
// the last seven days.
func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetReport(r.Context(), principalFrom(r.Context()), chi.URLParam(r, "mediaBuyID"), r.URL.Query().Get("range"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}
