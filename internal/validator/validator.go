package validator

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"virtus/internal/models"
)

var ErrInvalidEmail = errors.New("invalid email")

const (
	minPasswordLength = 8
	maxNameLength     = 120
)

func ValidateEmail(email string) error {
	if err := validation.Validate(strings.TrimSpace(email), validation.Required, is.EmailFormat); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

type Registration struct {
	Email          string
	Password       string
	Name           string
	Kind           models.UserKind
	InstitutionIDs []string
}

// Validate checks a sign-up. Students and professors must belong to at
// least one institution; companies to none.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, 0)),
		validation.Field(&r.Name, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&r.Kind, validation.Required, validation.In(models.KindStudent, models.KindProfessor, models.KindCompany)),
		validation.Field(&r.InstitutionIDs, validation.By(r.institutionsRule)),
	)
}

func (r Registration) institutionsRule(value interface{}) error {
	ids, _ := value.([]string)
	if r.Kind == models.KindCompany {
		return nil
	}
	if len(ids) == 0 {
		return errors.New("at least one institution is required")
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return errors.New("institution ids must not be blank")
		}
	}
	return nil
}

// ProfileUpdate holds the profile fields a student may change. Nil fields
// are left untouched.
type ProfileUpdate struct {
	Email    *string
	Name     *string
	Password *string
}

func (p ProfileUpdate) Validate() error {
	if p.Email == nil && p.Name == nil && p.Password == nil {
		return errors.New("nothing to update")
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.NilOrNotEmpty, is.EmailFormat),
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.RuneLength(1, maxNameLength)),
		validation.Field(&p.Password, validation.NilOrNotEmpty, validation.Length(minPasswordLength, 0)),
	)
}

type Advantage struct {
	Name        string
	Description string
	Price       int64
	PhotoURL    string
}

func (a Advantage) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&a.Description, validation.RuneLength(0, 1000)),
		validation.Field(&a.Price, validation.Required, validation.Min(int64(1))),
		validation.Field(&a.PhotoURL, is.URL),
	)
}
