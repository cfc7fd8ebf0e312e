package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"adcp-engine/internal/core/domain"
)

// writeJSON encodes v with the given status. Encoding errors are logged;
// headers are already out by then.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", slog.Any("error", err))
	}
}

// writeError maps the three engine error kinds onto HTTP statuses. A
// validation failure returns the complete violation list; an illegal
// transition names the current and requested state; everything else is a
// dependency failure and the only kind a caller may retry.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ViolationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "validation_failed",
			"violations": verr.Violations,
		})
		return
	}
	var terr *domain.TransitionError
	if errors.As(err, &terr) {
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"error":            "illegal_transition",
			"current_status":   terr.From,
			"requested_status": terr.To,
		})
		return
	}
	if errors.Is(err, domain.ErrMediaBuyNotFound) {
		http.Error(w, "media buy not found", http.StatusNotFound)
		return
	}
	h.logger.Error("request error",
		slog.String("path", r.URL.Path), slog.Any("error", err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}
