package controllers

import (
	"context"
	"net/http"

	"github.com/glowhaus/storefront-backend/api/responses"
	"github.com/glowhaus/storefront-backend/api/validators"
	cartsvc "github.com/glowhaus/storefront-backend/internal/cart"
	"github.com/glowhaus/storefront-backend/internal/shipping"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/logger"
)

type cartReader interface {
	Get(ctx context.Context, owner cartsvc.Owner) (*cartsvc.Snapshot, error)
}

type addItemRequest struct {
	ProductID    string  `json:"productId" validate:"required,max=128"`
	VariantLabel *string `json:"variantLabel,omitempty" validate:"omitempty,max=128"`
}

type quantityRequest struct {
	VariantLabel *string `json:"variantLabel,omitempty" validate:"omitempty,max=128"`
	Delta        int     `json:"delta" validate:"required,min=-999,max=999"`
}

type variantRequest struct {
	From *string `json:"from,omitempty" validate:"omitempty,max=128"`
	To   *string `json:"to,omitempty" validate:"omitempty,max=128"`
}

// CartFetch returns the caller's bag.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		owner, err := cartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := svc.Get(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

// CartAdd adds one unit of a product variant.
func CartAdd(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		owner, err := cartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := svc.Add(r.Context(), owner, cartsvc.AddInput{
			ProductID:    payload.ProductID,
			VariantLabel: payload.VariantLabel,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

// CartRemove drops a line. The variant query parameter selects the variant;
// omitting it addresses the standard line.
func CartRemove(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		owner, err := cartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.URLParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := svc.Remove(r.Context(), owner, productID, validators.OptionalQuery(r, "variant"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

func CartUpdateQuantity(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		owner, err := cartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.URLParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload quantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := svc.UpdateQuantity(r.Context(), owner, cartsvc.QuantityInput{
			ProductID:    productID,
			VariantLabel: payload.VariantLabel,
			Delta:        payload.Delta,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

func CartUpdateVariant(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		owner, err := cartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.URLParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload variantRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := svc.UpdateVariant(r.Context(), owner, cartsvc.VariantInput{
			ProductID:  productID,
			OldVariant: payload.From,
			NewVariant: payload.To,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

// ShippingQuote prices delivery of the current bag to ?region=. Without a
// region the shipping and total fields are null.
func ShippingQuote(carts cartReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if carts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		owner, err := cartOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := carts.Get(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		region := validators.SanitizeString(r.URL.Query().Get("region"), 16)
		responses.WriteSuccess(w, shipping.NewQuote(region, snap.Subtotal))
	}
}
