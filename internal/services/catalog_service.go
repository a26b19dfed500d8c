package services

import (
	"context"
	"strings"

	"virtus/internal/apperr"
	"virtus/internal/models"
	"virtus/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const maxAdvantageName = 120

// CatalogService manages the advantages companies offer. Only the owning
// company may change an advantage.
type CatalogService struct {
	engine     *Engine
	users      UserStore
	advantages AdvantageStore
}

func NewCatalogService(engine *Engine, users UserStore, advantages AdvantageStore) *CatalogService {
	return &CatalogService{engine: engine, users: users, advantages: advantages}
}

type AdvantageInput struct {
	Name        string
	Description string
	Price       int64
	PhotoURL    *string
}

func (s *CatalogService) Create(ctx context.Context, companyID string, in AdvantageInput) (models.Advantage, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxAdvantageName {
		return models.Advantage{}, apperr.New(apperr.KindInvalidInput, "name is required and must have at most 120 characters")
	}
	if in.Price <= 0 {
		return models.Advantage{}, apperr.New(apperr.KindInvalidAmount, "price must be a positive number of coins")
	}
	company, err := s.users.GetByID(ctx, companyID)
	if err != nil {
		return models.Advantage{}, notFound(err, "company not found")
	}
	if company.Kind != models.KindCompany {
		return models.Advantage{}, apperr.New(apperr.KindForbidden, "only companies offer advantages")
	}
	var photo *string
	if in.PhotoURL != nil && strings.TrimSpace(*in.PhotoURL) != "" {
		p := strings.TrimSpace(*in.PhotoURL)
		photo = &p
	}
	adv := models.Advantage{
		ID:          uuid.NewString(),
		CompanyID:   company.ID,
		CompanyName: company.Name,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		PhotoURL:    photo,
		Active:      true,
		CreatedAt:   s.engine.now().UTC(),
	}
	err = s.engine.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.advantages.Create(ctx, tx, adv); err != nil {
			return err
		}
		return s.engine.audit.Log(ctx, tx, company.ID, "create", "advantage", adv.ID, map[string]any{
			"price": adv.Price,
		})
	})
	if err != nil {
		return models.Advantage{}, err
	}
	return adv, nil
}

func (s *CatalogService) ListAll(ctx context.Context) ([]models.Advantage, error) {
	return s.advantages.List(ctx, store.AdvantageFilter{})
}

func (s *CatalogService) ListActive(ctx context.Context) ([]models.Advantage, error) {
	return s.advantages.List(ctx, store.AdvantageFilter{ActiveOnly: true})
}

func (s *CatalogService) ListByCompany(ctx context.Context, companyID string) ([]models.Advantage, error) {
	return s.advantages.List(ctx, store.AdvantageFilter{CompanyID: companyID})
}

func (s *CatalogService) Get(ctx context.Context, advantageID string) (models.Advantage, error) {
	adv, err := s.advantages.GetByID(ctx, advantageID)
	if err != nil {
		return models.Advantage{}, notFound(err, "advantage not found")
	}
	return adv, nil
}

func (s *CatalogService) SetActive(ctx context.Context, companyID, advantageID string, active bool) (models.Advantage, error) {
	err := s.engine.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		n, err := s.advantages.SetActive(ctx, tx, advantageID, companyID, active)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := s.ownedBy(ctx, advantageID, companyID); err != nil {
				return err
			}
		}
		return s.engine.audit.Log(ctx, tx, companyID, "set_active", "advantage", advantageID, map[string]any{
			"active": active,
		})
	})
	if err != nil {
		return models.Advantage{}, err
	}
	return s.Get(ctx, advantageID)
}

// UpdatePrice changes the price while no voucher references the advantage.
func (s *CatalogService) UpdatePrice(ctx context.Context, companyID, advantageID string, price int64) (models.Advantage, error) {
	if price <= 0 {
		return models.Advantage{}, apperr.New(apperr.KindInvalidAmount, "price must be a positive number of coins")
	}
	err := s.engine.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		n, err := s.advantages.UpdatePrice(ctx, tx, advantageID, companyID, price)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := s.ownedBy(ctx, advantageID, companyID); err != nil {
				return err
			}
			return apperr.ErrAdvantageLocked
		}
		return s.engine.audit.Log(ctx, tx, companyID, "update_price", "advantage", advantageID, map[string]any{
			"price": price,
		})
	})
	if err != nil {
		return models.Advantage{}, err
	}
	return s.Get(ctx, advantageID)
}

// Delete removes the advantage. Issued vouchers keep their snapshot.
func (s *CatalogService) Delete(ctx context.Context, companyID, advantageID string) error {
	return s.engine.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		n, err := s.advantages.Delete(ctx, tx, advantageID, companyID)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := s.ownedBy(ctx, advantageID, companyID); err != nil {
				return err
			}
			return apperr.New(apperr.KindConflict, "advantage could not be deleted")
		}
		return s.engine.audit.Log(ctx, tx, companyID, "delete", "advantage", advantageID, nil)
	})
}

func (s *CatalogService) ownedBy(ctx context.Context, advantageID, companyID string) error {
	adv, err := s.advantages.GetByID(ctx, advantageID)
	if err != nil {
		return notFound(err, "advantage not found")
	}
	if adv.CompanyID != companyID {
		return apperr.New(apperr.KindForbidden, "advantage belongs to another company")
	}
	return nil
}
