// Package address manages the saved delivery addresses of signed-in shoppers.
package address

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowhaus/storefront-backend/internal/locations"
	"github.com/glowhaus/storefront-backend/pkg/db/models"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/logger"
)

type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]View, error)
	Create(ctx context.Context, userID uuid.UUID, in Input) (*View, error)
	Update(ctx context.Context, userID, id uuid.UUID, in Input) (*View, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo      *Repository
	tx        txRunner
	directory *locations.Directory
	validate  *validator.Validate
	logg      *logger.Logger
}

// NewService builds the address book. directory may be nil, which skips the
// region/province/city consistency check.
func NewService(repo *Repository, tx txRunner, directory *locations.Directory, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, directory: directory, validate: newValidator(), logg: logg}, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	rows, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, toView(row))
	}
	return out, nil
}

// Create stores a new address. The user's first address is always the
// default; later ones are default only when asked, and nothing clears the
// flag on older rows.
func (s *service) Create(ctx context.Context, userID uuid.UUID, in Input) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	in, err := s.check(in)
	if err != nil {
		return nil, err
	}

	row := &models.SavedAddress{UserID: userID}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.Count(ctx, userID)
		if err != nil {
			return err
		}
		if existing == 0 {
			in.IsDefault = true
		}
		in.apply(row)
		return repo.Create(ctx, row)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}
	view := toView(*row)
	return &view, nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, in Input) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	in, err := s.check(in)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.Find(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	in.apply(row)
	if err := s.repo.Save(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update address")
	}
	view := toView(*row)
	return &view, nil
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	s.logg.Info(s.logg.WithField(ctx, "address_id", id.String()), "address.deleted")
	return nil
}

func (s *service) check(in Input) (Input, error) {
	in = in.normalized()
	if err := s.validate.Struct(in); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			return in, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
		}
		details := make(map[string]string, len(errs))
		for _, fe := range errs {
			details[fe.Field()] = "is invalid"
			if fe.Tag() == "required" {
				details[fe.Field()] = "is required"
			}
		}
		return in, pkgerrors.New(pkgerrors.CodeValidation, "invalid address").WithDetails(details)
	}
	if s.directory == nil {
		return in, nil
	}
	province, city, err := s.directory.Check(in.Region, in.Province, in.City)
	var mismatch *locations.Mismatch
	if errors.As(err, &mismatch) {
		return in, invalidField(mismatch.Field, mismatch.Problem)
	}
	in.Province, in.City = province, city
	return in, nil
}

func invalidField(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid address").
		WithDetails(map[string]string{field: message})
}
