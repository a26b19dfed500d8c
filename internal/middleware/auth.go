package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"virtus/internal/apperr"
	"virtus/internal/auth"
	"virtus/internal/models"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	kindKey   contextKey = "user_kind"
)

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}

func KindFromContext(ctx context.Context) (models.UserKind, bool) {
	kind, ok := ctx.Value(kindKey).(models.UserKind)
	return kind, ok
}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, userID string, kind models.UserKind) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, kindKey, kind)
}

func writeError(w http.ResponseWriter, status int, kind apperr.Kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "kind": string(kind)})
}

func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "missing authorization header")
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "invalid authorization header")
				return
			}
			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserID, claims.Kind)))
		})
	}
}

// RequireKind lets only users of the given kinds through.
func RequireKind(kinds ...models.UserKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			kind, ok := KindFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "unauthorized")
				return
			}
			for _, allowed := range kinds {
				if kind == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, apperr.KindForbidden, "not allowed for "+string(kind))
		})
	}
}

// RequireSelf rejects requests whose URL parameter param is not the caller.
func RequireSelf(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "unauthorized")
				return
			}
			if chi.URLParam(r, param) != userID {
				writeError(w, http.StatusForbidden, apperr.KindForbidden, "cannot act on behalf of another user")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
