package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"virtus/internal/apperr"
	"virtus/internal/middleware"
	"virtus/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

func (h *Handler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	rows, err := h.transactions.ListAll(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactions(rows))
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	rows, err := h.audit.List(r.Context(), r.URL.Query().Get("entity"), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// Reconcile lists accounts whose stored balance drifted from the ledger. An
// empty list means the books are consistent.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rows, err := h.accounts.Reconcile(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]reconcileResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toReconcile(row))
	}
	if len(out) > 0 {
		h.log.WithField("accounts", len(out)).Warn("ledger drift detected")
	}
	respondJSON(w, http.StatusOK, out)
}

// ReconcileUser compares one user's stored balance with its ledger sum, drift
// or not.
func (h *Handler) ReconcileUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	row, err := h.accounts.Summary(r.Context(), userID)
	if err != nil {
		if store.IsNotFound(err) {
			respondError(w, http.StatusNotFound, apperr.KindNotFound, "account not found")
			return
		}
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toReconcile(row))
}

func (h *Handler) AdminListAccounts(w http.ResponseWriter, r *http.Request) {
	rows, err := h.accounts.ListAllWithUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, accountResponse{
			ID:      row.ID,
			Tipo:    row.OwnerKind,
			Saldo:   row.Balance,
			Sistema: row.IsSystem,
			Nome:    row.Name,
			Email:   row.Email,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

type adminRequest struct {
	UsuarioID string   `json:"usuarioId"`
	Super     bool     `json:"super"`
	Papeis    []string `json:"papeis"`
}

type adminResponse struct {
	UsuarioID string   `json:"usuarioId"`
	Super     bool     `json:"super"`
	Papeis    []string `json:"papeis"`
}

// CreateAdmin promotes an existing user and grants roles. Only super admins
// may create other super admins.
func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "unauthorized")
		return
	}
	var req adminRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidPayload(w)
		return
	}
	userID := strings.TrimSpace(req.UsuarioID)
	if userID == "" {
		respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, "usuarioId is required")
		return
	}
	for _, role := range req.Papeis {
		if !middleware.KnownRole(role) {
			respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, "unknown role "+role)
			return
		}
	}
	if req.Super {
		_, callerSuper, err := h.admin.IsAdmin(r.Context(), callerID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !callerSuper {
			respondError(w, http.StatusForbidden, apperr.KindForbidden, "only super admins can create super admins")
			return
		}
	}
	if _, err := h.users.GetByID(r.Context(), userID); err != nil {
		if store.IsNotFound(err) {
			respondError(w, http.StatusNotFound, apperr.KindNotFound, "user not found")
			return
		}
		h.fail(w, r, err)
		return
	}

	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.CreateAdmin(r.Context(), tx, userID, req.Super, &callerID); err != nil {
			return err
		}
		for _, role := range req.Papeis {
			if err := h.admin.GrantRole(r.Context(), tx, userID, role); err != nil {
				return err
			}
		}
		return h.audit.Log(r.Context(), tx, callerID, "admin.grant", "user", userID, map[string]any{
			"super": req.Super,
			"roles": req.Papeis,
		})
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	_, isSuper, err := h.admin.IsAdmin(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	roles, err := h.admin.Roles(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, adminResponse{UsuarioID: userID, Super: isSuper, Papeis: roles})
}

type allowanceRequest struct {
	ProfessorID string          `json:"professorId"`
	Valor       json.RawMessage `json:"valor"`
	Motivo      string          `json:"motivo"`
}

// Allowance credits a professor from the system account.
func (h *Handler) Allowance(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "unauthorized")
		return
	}
	var req allowanceRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidPayload(w)
		return
	}
	if strings.TrimSpace(req.ProfessorID) == "" {
		respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, "professorId is required")
		return
	}
	amount, err := parseAmount(req.Valor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	receipt, err := h.transfers.GrantAllowance(r.Context(), adminID, strings.TrimSpace(req.ProfessorID), amount, strings.TrimSpace(req.Motivo))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toReceipt(receipt))
}
