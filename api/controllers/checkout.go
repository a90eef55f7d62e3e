package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/api/middleware"
	"github.com/glowhaus/storefront-backend/api/responses"
	"github.com/glowhaus/storefront-backend/api/validators"
	authsvc "github.com/glowhaus/storefront-backend/internal/auth"
	cartsvc "github.com/glowhaus/storefront-backend/internal/cart"
	"github.com/glowhaus/storefront-backend/internal/checkout"
	"github.com/glowhaus/storefront-backend/internal/orders"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/logger"
)

const idempotencyHeader = "Idempotency-Key"

// DraftManager owns the per-session checkout draft.
type DraftManager interface {
	Hydrate(ctx context.Context, input checkout.HydrateInput) (*checkout.HydrateResult, error)
	Update(ctx context.Context, sessionID string, patch checkout.Patch) (*checkout.Draft, error)
	Quote(ctx context.Context, sessionID string, owner cartsvc.Owner) (*checkout.QuoteResult, error)
	Options(region, province string) checkout.Options
}

type accountLookup interface {
	Session(ctx context.Context, userID uuid.UUID) (*authsvc.SessionView, error)
}

type submitRequest struct {
	PaymentToken string `json:"paymentToken,omitempty" validate:"omitempty,max=512"`
	Confirmed    bool   `json:"confirmed"`
}

// CheckoutDraftFetch hydrates the checkout form when the page mounts.
func CheckoutDraftFetch(drafts DraftManager, accounts accountLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if drafts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := checkout.HydrateInput{SessionID: sid, User: identity(r, accounts, logg)}
		result, err := drafts.Hydrate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CheckoutDraftUpdate applies field edits; absent fields are left alone.
func CheckoutDraftUpdate(drafts DraftManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if drafts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var patch checkout.Patch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draft, err := drafts.Update(r.Context(), sid, patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"draft":   draft,
			"options": drafts.Options(draft.Region, draft.Province),
		})
	}
}

func CheckoutQuote(drafts DraftManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if drafts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		owner, err := cartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := drafts.Quote(r.Context(), sid, owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// LocationOptions lists regions plus the provinces or cities under the
// ?region= and ?province= selection.
func LocationOptions(drafts DraftManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if drafts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		q := r.URL.Query()
		responses.WriteSuccess(w, drafts.Options(q.Get("region"), q.Get("province")))
	}
}

// CheckoutReview prices a cash-on-delivery order for the confirmation step.
func CheckoutReview(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		preview, err := svc.Review(r.Context(), orderRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

// CheckoutSubmit places the order. The Idempotency-Key header is generated
// once per attempt by the client and resent on retries.
func CheckoutSubmit(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		var payload submitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req := orderRequest(r)
		req.IdempotencyKey = strings.TrimSpace(r.Header.Get(idempotencyHeader))
		req.PaymentToken = payload.PaymentToken
		req.Confirmed = payload.Confirmed

		result, err := svc.Submit(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// CheckoutConfirmation serves the placed-order snapshot to the session or
// account that placed it.
func CheckoutConfirmation(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		number, err := validators.URLParam(r, "orderNumber")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Confirmation(r.Context(), orderRequest(r), number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// identity resolves what checkout may prefill for a signed-in shopper. A
// failed lookup degrades to the token's email alone.
func identity(r *http.Request, accounts accountLookup, logg *logger.Logger) *checkout.Identity {
	userID := middleware.UserUUIDFromContext(r.Context())
	if userID == nil {
		return nil
	}
	out := &checkout.Identity{UserID: *userID, Email: middleware.EmailFromContext(r.Context())}
	if accounts == nil {
		return out
	}
	view, err := accounts.Session(r.Context(), *userID)
	if err != nil {
		if logg != nil {
			logg.Error(r.Context(), "checkout.identity_lookup_failed", err)
		}
		return out
	}
	if view == nil {
		return out
	}
	if view.Email != "" {
		out.Email = view.Email
	}
	out.FirstName = view.Metadata["firstName"]
	out.LastName = view.Metadata["lastName"]
	return out
}
