package handlers

import (
	"net/http"
	"strings"

	"virtus/internal/apperr"
	"virtus/internal/auth"
	"virtus/internal/websocket"

	"github.com/go-chi/chi/v5"
)

type balanceResponse struct {
	ContaID string `json:"contaId"`
	Saldo   int64  `json:"saldo"`
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	account, err := h.transfers.Balance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{ContaID: account.ID, Saldo: account.Balance})
}

func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	rows, err := h.transfers.Statement(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactions(rows))
}

// Students lists the students that share an institution with the professor.
func (h *Handler) Students(w http.ResponseWriter, r *http.Request) {
	rows, err := h.transfers.Students(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toStudents(rows))
}

// WSBalances upgrades to a websocket that streams balance changes. Browsers
// cannot set headers on websocket requests, so the token may come in the
// query string.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID, h.log)
}
