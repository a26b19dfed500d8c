package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"virtus/internal/apperr"
	"virtus/internal/models"
	"virtus/internal/services"
	"virtus/internal/validator"

	"github.com/go-chi/chi/v5"
)

type advantageRequest struct {
	Nome      string          `json:"nome"`
	Descricao string          `json:"descricao"`
	Preco     json.RawMessage `json:"preco"`
	FotoURL   *string         `json:"fotoUrl"`
}

func (h *Handler) CreateAdvantage(w http.ResponseWriter, r *http.Request) {
	var req advantageRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidPayload(w)
		return
	}
	price, err := parseAmount(req.Preco)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in := services.AdvantageInput{
		Name:        strings.TrimSpace(req.Nome),
		Description: strings.TrimSpace(req.Descricao),
		Price:       price,
	}
	photo := ""
	if req.FotoURL != nil && strings.TrimSpace(*req.FotoURL) != "" {
		photo = strings.TrimSpace(*req.FotoURL)
		in.PhotoURL = &photo
	}
	if err := (validator.Advantage{Name: in.Name, Description: in.Description, Price: in.Price, PhotoURL: photo}).Validate(); err != nil {
		respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, err.Error())
		return
	}
	advantage, err := h.catalog.Create(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toAdvantage(advantage))
}

type updateAdvantageRequest struct {
	Ativo *bool           `json:"ativo"`
	Preco json.RawMessage `json:"preco"`
}

// UpdateAdvantage toggles activation and, while the advantage has no
// redemptions, changes its price.
func (h *Handler) UpdateAdvantage(w http.ResponseWriter, r *http.Request) {
	var req updateAdvantageRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidPayload(w)
		return
	}
	hasPrice := len(req.Preco) > 0 && string(req.Preco) != "null"
	if req.Ativo == nil && !hasPrice {
		respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, "nothing to update")
		return
	}
	companyID := chi.URLParam(r, "id")
	advantageID := chi.URLParam(r, "vid")
	var (
		updated models.Advantage
		err     error
	)
	if hasPrice {
		price, perr := parseAmount(req.Preco)
		if perr != nil {
			h.fail(w, r, perr)
			return
		}
		if updated, err = h.catalog.UpdatePrice(r.Context(), companyID, advantageID, price); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if req.Ativo != nil {
		if updated, err = h.catalog.SetActive(r.Context(), companyID, advantageID, *req.Ativo); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, toAdvantage(updated))
}

func (h *Handler) DeleteAdvantage(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "vid")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListAdvantages(w http.ResponseWriter, r *http.Request) {
	rows, err := h.catalog.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toAdvantages(rows))
}

func (h *Handler) ListActiveAdvantages(w http.ResponseWriter, r *http.Request) {
	rows, err := h.catalog.ListActive(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toAdvantages(rows))
}

func (h *Handler) ListCompanyAdvantages(w http.ResponseWriter, r *http.Request) {
	rows, err := h.catalog.ListByCompany(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toAdvantages(rows))
}

func (h *Handler) GetAdvantage(w http.ResponseWriter, r *http.Request) {
	advantage, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toAdvantage(advantage))
}
