package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"virtus/internal/apperr"
	"virtus/internal/models"
	"virtus/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type redeemRequest struct {
	VantagemID string `json:"vantagemId"`
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidPayload(w)
		return
	}
	if strings.TrimSpace(req.VantagemID) == "" {
		respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, "vantagemId is required")
		return
	}
	voucher, err := h.redemptions.Issue(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.VantagemID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.toVoucher(voucher, true))
}

// ListRedemptions lists the student's vouchers, optionally filtered by
// ?utilizado=true|false.
func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	var consumed *bool
	if raw := r.URL.Query().Get("utilizado"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, "utilizado must be true or false")
			return
		}
		consumed = &value
	}
	rows, err := h.redemptions.List(r.Context(), chi.URLParam(r, "id"), consumed)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toVouchers(rows))
}

// ValidateOwnRedemption lets a student mark one of their vouchers as used.
func (h *Handler) ValidateOwnRedemption(w http.ResponseWriter, r *http.Request) {
	by, err := h.principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.redemptions.Consume(r.Context(), chi.URLParam(r, "rid"), by); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetRedemption(w http.ResponseWriter, r *http.Request) {
	voucher, ok := h.lookup(w, r, h.redemptions.Get)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.toVoucher(voucher, true))
}

func (h *Handler) ValidateRedemption(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.lookup(w, r, h.redemptions.Consume); !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type voucherLookup func(ctx context.Context, identifier string, by services.Principal) (models.Voucher, error)

// lookup runs fn on the {id} path parameter. Callers that keep guessing
// identifiers that do not exist or are not theirs are throttled.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, fn voucherLookup) (models.Voucher, bool) {
	by, err := h.principal(r)
	if err != nil {
		h.fail(w, r, err)
		return models.Voucher{}, false
	}
	exceeded, err := h.limiter.Exceeded(r.Context(), by.UserID)
	if err != nil {
		h.log.WithError(err).Warn("rate limiter unavailable")
	} else if exceeded {
		h.fail(w, r, apperr.ErrRateLimited)
		return models.Voucher{}, false
	}
	voucher, err := fn(r.Context(), chi.URLParam(r, "id"), by)
	if err != nil {
		if kind := apperr.KindOf(err); kind == apperr.KindNotFound || kind == apperr.KindForbidden {
			if hitErr := h.limiter.Hit(r.Context(), by.UserID); hitErr != nil {
				h.log.WithError(hitErr).Warn("rate limiter unavailable")
			}
			h.log.WithFields(logrus.Fields{"user_id": by.UserID}).Info("voucher lookup missed")
		}
		h.fail(w, r, err)
		return models.Voucher{}, false
	}
	return voucher, true
}
