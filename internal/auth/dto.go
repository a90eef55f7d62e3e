package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/internal/cart"
	"github.com/glowhaus/storefront-backend/internal/users"
)

// RegisterRequest is the sign-up payload. SessionID is the guest browser
// session whose bag is carried into the new account.
type RegisterRequest struct {
	FirstName string  `json:"firstName" validate:"required,max=80"`
	LastName  string  `json:"lastName" validate:"required,max=80"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8,max=128"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	SessionID string  `json:"-"`
}

// LoginRequest captures the user credentials sent to the sign-in endpoint.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	SessionID string `json:"-"`
}

// RefreshRequest pairs the last access token, possibly expired, with the
// refresh token minted alongside it.
type RefreshRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Result is returned by every flow that signs a shopper in.
type Result struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	ExpiresAt    time.Time      `json:"expiresAt"`
	User         *users.UserDTO `json:"user"`
	Cart         *cart.Snapshot `json:"cart,omitempty"`
}

// SessionView answers "who is signed in".
type SessionView struct {
	UserID   uuid.UUID         `json:"userId"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata"`
}
