package controllers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glowhaus/storefront-backend/internal/catalog"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
)

type stubCatalog struct {
	products    []catalog.Product
	unavailable []catalog.Source
	source      catalog.Source
	query       string
	calls       int
	err         error
}

func (s *stubCatalog) List(ctx context.Context, source catalog.Source, query string) (*catalog.Listing, error) {
	s.calls++
	s.source = source
	s.query = query
	if s.err != nil {
		return nil, s.err
	}
	out := make([]catalog.Product, len(s.products))
	copy(out, s.products)
	return &catalog.Listing{Products: out, Unavailable: s.unavailable}, nil
}

func (s *stubCatalog) Get(ctx context.Context, id string) (*catalog.Product, error) {
	for i := range s.products {
		if s.products[i].ID == id {
			return &s.products[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func productsFixture(n int) []catalog.Product {
	out := make([]catalog.Product, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, catalog.Product{ID: fmt.Sprintf("p-%d", i), Name: fmt.Sprintf("Product %d", i), Source: catalog.SourceStatic})
	}
	return out
}

func TestProductListMapsSourceAndQuery(t *testing.T) {
	svc := &stubCatalog{products: productsFixture(3)}
	resp := httptest.NewRecorder()
	ProductList(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/products?source=ALL&q=++serum++", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.source != "" {
		t.Fatalf("expected combined source, got %q", svc.source)
	}
	if svc.query != "serum" {
		t.Fatalf("expected sanitized query, got %q", svc.query)
	}

	ProductList(svc, nil).ServeHTTP(httptest.NewRecorder(), newRequest(http.MethodGet, "/api/v1/products?source=xml", ""))
	if svc.source != catalog.SourceXML {
		t.Fatalf("expected xml source, got %q", svc.source)
	}
}

func TestProductListAppliesLimit(t *testing.T) {
	svc := &stubCatalog{products: productsFixture(10), unavailable: []catalog.Source{catalog.SourceXML}}
	resp := httptest.NewRecorder()
	ProductList(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/products?limit=4", ""))

	var listing catalog.Listing
	decodeData(t, resp, &listing)
	if len(listing.Products) != 4 {
		t.Fatalf("expected 4 products, got %d", len(listing.Products))
	}
	if len(listing.Unavailable) != 1 || listing.Unavailable[0] != catalog.SourceXML {
		t.Fatalf("expected xml flagged unavailable, got %v", listing.Unavailable)
	}

	resp = httptest.NewRecorder()
	ProductList(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/products?limit=0", ""))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range limit, got %d", resp.Code)
	}
}

func TestProductListRejectsUnknownSource(t *testing.T) {
	svc := &stubCatalog{}
	resp := httptest.NewRecorder()
	ProductList(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/products?source=ftp", ""))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("catalog should not be queried for an unknown source")
	}
}

func TestProductListPropagatesCatalogErrors(t *testing.T) {
	svc := &stubCatalog{err: pkgerrors.New(pkgerrors.CodeDependency, "feed down")}
	resp := httptest.NewRecorder()
	ProductList(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/products?source=xml", ""))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestProductGet(t *testing.T) {
	svc := &stubCatalog{products: productsFixture(2)}

	resp := httptest.NewRecorder()
	ProductGet(svc, nil).ServeHTTP(resp, withURLParams(newRequest(http.MethodGet, "/api/v1/products/p-1", ""), map[string]string{"productID": "p-1"}))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var product catalog.Product
	decodeData(t, resp, &product)
	if product.ID != "p-1" {
		t.Fatalf("unexpected product %+v", product)
	}

	resp = httptest.NewRecorder()
	ProductGet(svc, nil).ServeHTTP(resp, withURLParams(newRequest(http.MethodGet, "/api/v1/products/nope", ""), map[string]string{"productID": "nope"}))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
