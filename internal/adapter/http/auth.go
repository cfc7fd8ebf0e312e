package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"adcp-engine/internal/core/domain"
)

type contextKey int

const principalKey contextKey = iota

// authenticate resolves the calling principal from the Authorization bearer
// token and stores it in the request context. Missing or unknown tokens
// produce HTTP 401.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		principal, err := h.principals.FindByToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrPrincipalNotFound) {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			h.logger.Error("principal lookup error", slog.Any("error", err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, *principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principalFrom returns the authenticated principal stored by the
// authentication middleware.
func principalFrom(ctx context.Context) domain.Principal {
	p, _ := ctx.Value(principalKey).(domain.Principal)
	return p
}
