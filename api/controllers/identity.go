package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/api/middleware"
	"github.com/glowhaus/storefront-backend/internal/cart"
	"github.com/glowhaus/storefront-backend/internal/orders"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
)

// cartOwner picks the signed-in user's cart, falling back to the browser
// session's.
func cartOwner(r *http.Request) (cart.Owner, error) {
	owner := cart.OwnerFor(middleware.UserUUIDFromContext(r.Context()), middleware.SessionIDFromContext(r.Context()))
	if !owner.Valid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}
	return owner, nil
}

func sessionID(r *http.Request) (string, error) {
	id := middleware.SessionIDFromContext(r.Context())
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}
	return id, nil
}

func requireUser(r *http.Request) (uuid.UUID, error) {
	id := middleware.UserUUIDFromContext(r.Context())
	if id == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	return *id, nil
}

func orderRequest(r *http.Request) orders.Request {
	return orders.Request{
		SessionID: middleware.SessionIDFromContext(r.Context()),
		UserID:    middleware.UserUUIDFromContext(r.Context()),
	}
}
