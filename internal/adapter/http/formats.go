package httpadapter

import "net/http"

func (h *Handler) handleListFormats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"formats": h.svc.ListCreativeFormats(),
	})
}
