package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"virtus/internal/apperr"
	"virtus/internal/auth"
	"virtus/internal/db"
	"virtus/internal/middleware"
	"virtus/internal/models"
	"virtus/internal/store"
	"virtus/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type registerRequest struct {
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	Nome           string   `json:"nome"`
	Tipo           string   `json:"tipo"`
	InstituicaoIDs []string `json:"instituicaoIds"`
}

type tokenResponse struct {
	Token   string       `json:"token"`
	Usuario userResponse `json:"usuario"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidPayload(w)
		return
	}
	reg := validator.Registration{
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Password:       req.Password,
		Name:           strings.TrimSpace(req.Nome),
		Kind:           models.UserKind(strings.ToLower(strings.TrimSpace(req.Tipo))),
		InstitutionIDs: req.InstituicaoIDs,
	}
	if reg.Kind == models.KindCompany {
		reg.InstitutionIDs = nil
	}
	if err := reg.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, err.Error())
		return
	}
	for _, institutionID := range reg.InstitutionIDs {
		exists, err := h.institutions.Exists(r.Context(), institutionID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !exists {
			respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, "unknown institution "+institutionID)
			return
		}
	}
	passwordHash, err := auth.HashPassword(reg.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, apperr.KindInternal, "failed to secure password")
		return
	}
	user := models.User{
		ID:           uuid.NewString(),
		Email:        reg.Email,
		Name:         reg.Name,
		Kind:         reg.Kind,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	var isAdmin bool
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.users.Create(r.Context(), tx, user); err != nil {
			return err
		}
		if err := h.accounts.Create(r.Context(), tx, uuid.NewString(), &user.ID, string(user.Kind)); err != nil {
			return err
		}
		for _, institutionID := range reg.InstitutionIDs {
			if err := h.institutions.Link(r.Context(), tx, user.ID, institutionID); err != nil {
				return err
			}
		}
		promoted, err := h.bootstrapAdmin(r.Context(), tx, user)
		if err != nil {
			return err
		}
		isAdmin = promoted
		return h.audit.Log(r.Context(), tx, user.ID, "user.register", "user", user.ID, map[string]any{
			"kind":       user.Kind,
			"ip":         r.RemoteAddr,
			"user_agent": r.UserAgent(),
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			respondError(w, http.StatusConflict, apperr.KindConflict, "email already registered")
			return
		}
		h.fail(w, r, err)
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, user.Kind, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, apperr.KindInternal, "failed to generate token")
		return
	}
	h.log.WithFields(logrus.Fields{"user_id": user.ID, "kind": user.Kind}).Info("user registered")
	respondJSON(w, http.StatusCreated, tokenResponse{Token: token, Usuario: toUser(user, isAdmin)})
}

// bootstrapAdmin makes the configured admin email the first super admin.
func (h *Handler) bootstrapAdmin(ctx context.Context, tx store.Execer, user models.User) (bool, error) {
	if h.cfg.AdminEmail == "" || !strings.EqualFold(h.cfg.AdminEmail, user.Email) {
		return false, nil
	}
	hasAdmin, err := h.admin.HasAnyAdmin(ctx)
	if err != nil {
		return false, err
	}
	if hasAdmin {
		return false, nil
	}
	if err := h.admin.CreateAdmin(ctx, tx, user.ID, true, nil); err != nil {
		return false, err
	}
	return true, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidPayload(w)
		return
	}
	if err := validator.ValidateEmail(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, err.Error())
		return
	}
	user, err := h.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if store.IsNotFound(err) {
			respondError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "invalid credentials")
			return
		}
		h.fail(w, r, err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "invalid credentials")
		return
	}
	if err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		return h.audit.Log(r.Context(), tx, user.ID, "user.login", "user", user.ID, map[string]any{
			"ip":         r.RemoteAddr,
			"user_agent": r.UserAgent(),
		})
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, user.Kind, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, apperr.KindInternal, "failed to generate token")
		return
	}
	isAdmin, _, err := h.admin.IsAdmin(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{Token: token, Usuario: toUser(user, isAdmin)})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, apperr.KindUnauthorized, "unauthorized")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if store.IsNotFound(err) {
			respondError(w, http.StatusNotFound, apperr.KindNotFound, "user not found")
			return
		}
		h.fail(w, r, err)
		return
	}
	isAdmin, _, err := h.admin.IsAdmin(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUser(user, isAdmin))
}

type profileRequest struct {
	Email    *string `json:"email"`
	Nome     *string `json:"nome"`
	Password *string `json:"password"`
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}

// UpdateProfile changes a student's name, email or password. Omitted fields
// keep their stored value.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidPayload(w)
		return
	}
	update := validator.ProfileUpdate{Email: trimmed(req.Email), Name: trimmed(req.Nome), Password: req.Password}
	if update.Email != nil {
		lowered := strings.ToLower(*update.Email)
		update.Email = &lowered
	}
	if err := update.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, apperr.KindInvalidInput, err.Error())
		return
	}
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if store.IsNotFound(err) {
			respondError(w, http.StatusNotFound, apperr.KindNotFound, "user not found")
			return
		}
		h.fail(w, r, err)
		return
	}

	var fields []string
	if update.Email != nil {
		user.Email = *update.Email
		fields = append(fields, "email")
	}
	if update.Name != nil {
		user.Name = *update.Name
		fields = append(fields, "nome")
	}
	user.PasswordHash = ""
	if update.Password != nil {
		user.PasswordHash, err = auth.HashPassword(*update.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, apperr.KindInternal, "failed to secure password")
			return
		}
		fields = append(fields, "password")
	}

	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.users.Update(r.Context(), tx, user); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, user.ID, "user.update", "user", user.ID, map[string]any{
			"fields": fields,
		})
	})
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			respondError(w, http.StatusConflict, apperr.KindConflict, "email already registered")
		case store.IsNotFound(err):
			respondError(w, http.StatusNotFound, apperr.KindNotFound, "user not found")
		default:
			h.fail(w, r, err)
		}
		return
	}
	isAdmin, _, err := h.admin.IsAdmin(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.WithFields(logrus.Fields{"user_id": user.ID, "fields": fields}).Info("profile updated")
	respondJSON(w, http.StatusOK, toUser(user, isAdmin))
}

func (h *Handler) Institutions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.institutions.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]institutionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, institutionResponse{ID: row.ID, Nome: row.Name})
	}
	respondJSON(w, http.StatusOK, out)
}
