package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/pkg/db/models"
)

// UserDTO is the account shape returned to clients. Credentials never leave
// the repository.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Phone       *string    `json:"phone,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// CreateUserDTO holds what the repository needs to persist a new account.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// Metadata is the profile bag attached to a session view.
func Metadata(u *models.User) map[string]string {
	meta := map[string]string{
		"firstName": u.FirstName,
		"lastName":  u.LastName,
	}
	if u.Phone != nil && *u.Phone != "" {
		meta["phone"] = *u.Phone
	}
	return meta
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:           uuid.New(),
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Phone:        c.Phone,
		IsActive:     true,
	}
}
