package controllers

import (
	"context"
	"net/http"

	"github.com/glowhaus/storefront-backend/api/responses"
	"github.com/glowhaus/storefront-backend/api/validators"
	"github.com/glowhaus/storefront-backend/internal/catalog"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/logger"
)

const (
	maxQueryLength   = 100
	defaultListLimit = 60
	maxListLimit     = 200
)

// ProductCatalog is the read side of the storefront catalog.
type ProductCatalog interface {
	List(ctx context.Context, source catalog.Source, query string) (*catalog.Listing, error)
	Get(ctx context.Context, id string) (*catalog.Product, error)
}

// ProductList serves the storefront grid. source=all (or empty) merges the
// static catalog with the XML feed.
func ProductList(svc ProductCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		rawSource, err := validators.QueryOneOf(r, "source", "all", "all", string(catalog.SourceStatic), string(catalog.SourceXML))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var source catalog.Source
		if rawSource != "all" {
			source = catalog.Source(rawSource)
		}
		query := validators.SanitizeString(r.URL.Query().Get("q"), maxQueryLength)

		limit, err := validators.ParseQueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.List(r.Context(), source, query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(listing.Products) > limit {
			listing.Products = listing.Products[:limit]
		}
		responses.WriteSuccess(w, listing)
	}
}

func ProductGet(svc ProductCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		id, err := validators.URLParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
