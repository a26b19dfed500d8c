package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"virtus/internal/apperr"
	"virtus/internal/middleware"
	"virtus/internal/services"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:            http.StatusNotFound,
	apperr.KindAlreadyConsumed:     http.StatusBadRequest,
	apperr.KindAlreadyApplied:      http.StatusBadRequest,
	apperr.KindInsufficientBalance: http.StatusBadRequest,
	apperr.KindAdvantageInactive:   http.StatusBadRequest,
	apperr.KindAdvantageLocked:     http.StatusBadRequest,
	apperr.KindUnauthorized:        http.StatusUnauthorized,
	apperr.KindForbidden:           http.StatusForbidden,
	apperr.KindInvalidAmount:       http.StatusBadRequest,
	apperr.KindInvalidInput:        http.StatusBadRequest,
	apperr.KindExpired:             http.StatusBadRequest,
	apperr.KindConflict:            http.StatusConflict,
	apperr.KindRateLimited:         http.StatusTooManyRequests,
	apperr.KindConnectionFailure:   http.StatusBadGateway,
	apperr.KindInternal:            http.StatusInternalServerError,
}

func statusFor(kind apperr.Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, kind apperr.Kind, message string) {
	respondJSON(w, status, errorResponse{Error: message, Kind: string(kind)})
}

// fail writes err using its kind. Internal errors are logged and their text
// is replaced.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		h.log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": chimiddleware.GetReqID(r.Context()),
		}).Error("request failed")
	}
	respondError(w, statusFor(kind), kind, apperr.MessageOf(err))
}

func invalidPayload(w http.ResponseWriter) {
	respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, "invalid payload")
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// principal resolves the caller, including whether they administer the
// system.
func (h *Handler) principal(r *http.Request) (services.Principal, error) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return services.Principal{}, apperr.ErrUnauthorized
	}
	kind, _ := middleware.KindFromContext(r.Context())
	isAdmin, _, err := h.admin.IsAdmin(r.Context(), userID)
	if err != nil {
		return services.Principal{}, err
	}
	return services.Principal{UserID: userID, Kind: kind, Admin: isAdmin}, nil
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// page reads limit and page query parameters.
func page(r *http.Request) (int, int) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	if limit > 200 {
		limit = 200
	}
	p := parseInt(query.Get("page"), 1)
	return limit, (p - 1) * limit
}
