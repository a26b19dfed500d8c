package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"virtus/internal/apperr"
	"virtus/internal/coins"
	"virtus/internal/middleware"
	"virtus/internal/services"

	"github.com/go-chi/chi/v5"
)

type sendCoinsRequest struct {
	AlunoID         string          `json:"alunoId"`
	Valor           json.RawMessage `json:"valor"`
	Motivo          string          `json:"motivo"`
	ClientRequestID *string         `json:"client_request_id"`
}

func parseAmount(raw json.RawMessage) (int64, error) {
	amount, err := coins.ParseJSON(raw)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInvalidAmount, err.Error(), err)
	}
	return amount, nil
}

// SendCoins moves coins from the professor in the path to a student.
func (h *Handler) SendCoins(w http.ResponseWriter, r *http.Request) {
	var req sendCoinsRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidPayload(w)
		return
	}
	if strings.TrimSpace(req.AlunoID) == "" {
		respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, "alunoId is required")
		return
	}
	amount, err := parseAmount(req.Valor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if key := r.Header.Get("Idempotency-Key"); req.ClientRequestID == nil && key != "" {
		req.ClientRequestID = &key
	}
	receipt, err := h.transfers.Transfer(r.Context(), services.TransferRequest{
		ProfessorID:     chi.URLParam(r, "id"),
		StudentID:       strings.TrimSpace(req.AlunoID),
		Amount:          amount,
		Memo:            strings.TrimSpace(req.Motivo),
		ClientRequestID: req.ClientRequestID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, toReceipt(receipt))
}

type applyCodeRequest struct {
	Codigo string `json:"codigo"`
}

// ApplyCode accepts either a voucher code or a payment link typed by the
// professor.
func (h *Handler) ApplyCode(w http.ResponseWriter, r *http.Request) {
	var req applyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidPayload(w)
		return
	}
	by, err := h.principal(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.codes.Apply(r.Context(), by, req.Codigo)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toCodeResult(result))
}

type paymentLinkRequest struct {
	Valor json.RawMessage `json:"valor"`
}

func (h *Handler) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	var req paymentLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidPayload(w)
		return
	}
	amount, err := parseAmount(req.Valor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	link, err := h.payments.CreateToken(r.Context(), chi.URLParam(r, "id"), amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPaymentLink(link))
}

func (h *Handler) GetPaymentLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.payments.Current(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPaymentLink(link))
}

func (h *Handler) DeletePaymentLink(w http.ResponseWriter, r *http.Request) {
	if err := h.payments.Revoke(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type payLinkRequest struct {
	PagadorID string `json:"pagadorId"`
	Link      string `json:"link"`
}

// PayLink pays another student's payment link. The payer must be the caller.
func (h *Handler) PayLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "unauthorized")
		return
	}
	var req payLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidPayload(w)
		return
	}
	if req.PagadorID != "" && req.PagadorID != userID {
		respondError(w, http.StatusForbidden, apperr.KindForbidden, "cannot pay on behalf of another user")
		return
	}
	if strings.TrimSpace(req.Link) == "" {
		respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, "link is required")
		return
	}
	receipt, err := h.payments.ApplyToken(r.Context(), userID, req.Link)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toReceipt(receipt))
}
