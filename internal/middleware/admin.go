package middleware

import (
	"context"
	"net/http"

	"virtus/internal/apperr"
)

const (
	RoleViewAudit      = "view_audit"
	RoleGrantAllowance = "grant_allowance"
	RoleManageAdmins   = "manage_admins"
)

// KnownRole reports whether role is one RequireAdmin checks for.
func KnownRole(role string) bool {
	switch role {
	case RoleViewAudit, RoleGrantAllowance, RoleManageAdmins:
		return true
	}
	return false
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

// RequireAdmin lets admins through. A non-empty role is also required unless
// the admin is a super admin.
func RequireAdmin(adminStore AdminStore, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "unauthorized")
				return
			}
			isAdmin, isSuper, err := adminStore.IsAdmin(r.Context(), userID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, apperr.KindInternal, "unable to verify admin")
				return
			}
			if !isAdmin {
				writeError(w, http.StatusForbidden, apperr.KindForbidden, "admin privileges required")
				return
			}
			if isSuper || role == "" {
				next.ServeHTTP(w, r)
				return
			}
			hasRole, err := adminStore.HasRole(r.Context(), userID, role)
			if err != nil {
				writeError(w, http.StatusInternalServerError, apperr.KindInternal, "unable to verify role")
				return
			}
			if !hasRole {
				writeError(w, http.StatusForbidden, apperr.KindForbidden, "missing required role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
