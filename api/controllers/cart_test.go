package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartsvc "github.com/glowhaus/storefront-backend/internal/cart"
	"github.com/glowhaus/storefront-backend/internal/shipping"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
)

type stubCartService struct {
	snap      *cartsvc.Snapshot
	err       error
	lastOwner cartsvc.Owner
	added     cartsvc.AddInput
	quantity  cartsvc.QuantityInput
	variant   cartsvc.VariantInput
	removed   *string
}

func (s *stubCartService) Get(ctx context.Context, owner cartsvc.Owner) (*cartsvc.Snapshot, error) {
	s.lastOwner = owner
	return s.snap, s.err
}

func (s *stubCartService) Add(ctx context.Context, owner cartsvc.Owner, input cartsvc.AddInput) (*cartsvc.Snapshot, error) {
	s.lastOwner = owner
	s.added = input
	return s.snap, s.err
}

func (s *stubCartService) Remove(ctx context.Context, owner cartsvc.Owner, productID string, variant *string) (*cartsvc.Snapshot, error) {
	s.lastOwner = owner
	s.removed = variant
	return s.snap, s.err
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, owner cartsvc.Owner, input cartsvc.QuantityInput) (*cartsvc.Snapshot, error) {
	s.lastOwner = owner
	s.quantity = input
	return s.snap, s.err
}

func (s *stubCartService) UpdateVariant(ctx context.Context, owner cartsvc.Owner, input cartsvc.VariantInput) (*cartsvc.Snapshot, error) {
	s.lastOwner = owner
	s.variant = input
	return s.snap, s.err
}

func (s *stubCartService) Clear(ctx context.Context, owner cartsvc.Owner) error { return s.err }

func (s *stubCartService) Merge(ctx context.Context, from, to cartsvc.Owner) (*cartsvc.Snapshot, error) {
	return s.snap, s.err
}

func sampleSnapshot(subtotal int64) *cartsvc.Snapshot {
	return &cartsvc.Snapshot{
		Items: []cartsvc.Line{{
			ProductID: "glow-serum",
			Name:      "Glow Serum",
			UnitPrice: decimal.NewFromInt(subtotal),
			Quantity:  1,
		}},
		Subtotal:       decimal.NewFromInt(subtotal),
		TotalItemCount: 1,
	}
}

func TestCartFetchUsesSessionOwnerForGuests(t *testing.T) {
	svc := &stubCartService{snap: sampleSnapshot(450)}
	resp := httptest.NewRecorder()
	CartFetch(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/cart", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastOwner != cartsvc.SessionOwner(testSession) {
		t.Fatalf("expected session owner, got %s", svc.lastOwner)
	}
	var snap cartsvc.Snapshot
	decodeData(t, resp, &snap)
	if snap.TotalItemCount != 1 || len(snap.Items) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestCartFetchUsesUserOwnerWhenSignedIn(t *testing.T) {
	svc := &stubCartService{snap: sampleSnapshot(450)}
	userID := uuid.New()
	req := asUser(newRequest(http.MethodGet, "/api/v1/cart", ""), userID)
	CartFetch(svc, nil).ServeHTTP(httptest.NewRecorder(), req)

	if svc.lastOwner != cartsvc.UserOwner(userID) {
		t.Fatalf("expected user owner, got %s", svc.lastOwner)
	}
}

func TestCartAddValidatesPayload(t *testing.T) {
	svc := &stubCartService{snap: sampleSnapshot(450)}
	resp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/cart/items", `{"variantLabel":"Rose"}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if apiErr := decodeError(t, resp); apiErr.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %s", apiErr.Code)
	}
}

func TestCartAddPassesVariant(t *testing.T) {
	svc := &stubCartService{snap: sampleSnapshot(450)}
	resp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/cart/items", `{"productId":"lip-tint","variantLabel":"Rose"}`))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.added.ProductID != "lip-tint" || svc.added.VariantLabel == nil || *svc.added.VariantLabel != "Rose" {
		t.Fatalf("unexpected add input %+v", svc.added)
	}
}

func TestCartRemoveReadsVariantQuery(t *testing.T) {
	svc := &stubCartService{snap: sampleSnapshot(450)}
	req := withURLParams(newRequest(http.MethodDelete, "/api/v1/cart/items/lip-tint?variant=Rose", ""), map[string]string{"productID": "lip-tint"})
	CartRemove(svc, nil).ServeHTTP(httptest.NewRecorder(), req)
	if svc.removed == nil || *svc.removed != "Rose" {
		t.Fatalf("expected Rose variant, got %v", svc.removed)
	}

	svc.removed = nil
	req = withURLParams(newRequest(http.MethodDelete, "/api/v1/cart/items/lip-tint", ""), map[string]string{"productID": "lip-tint"})
	CartRemove(svc, nil).ServeHTTP(httptest.NewRecorder(), req)
	if svc.removed != nil {
		t.Fatalf("expected standard line, got %q", *svc.removed)
	}
}

func TestCartUpdateQuantityRejectsZeroDelta(t *testing.T) {
	svc := &stubCartService{snap: sampleSnapshot(450)}
	req := withURLParams(newRequest(http.MethodPatch, "/api/v1/cart/items/lip-tint/quantity", `{"delta":0}`), map[string]string{"productID": "lip-tint"})
	resp := httptest.NewRecorder()
	CartUpdateQuantity(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = withURLParams(newRequest(http.MethodPatch, "/api/v1/cart/items/lip-tint/quantity", `{"delta":-1}`), map[string]string{"productID": "lip-tint"})
	resp = httptest.NewRecorder()
	CartUpdateQuantity(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.quantity.Delta != -1 || svc.quantity.ProductID != "lip-tint" {
		t.Fatalf("unexpected quantity input %+v", svc.quantity)
	}
}

func TestCartUpdateVariantMapsFromTo(t *testing.T) {
	svc := &stubCartService{snap: sampleSnapshot(450)}
	req := withURLParams(newRequest(http.MethodPatch, "/api/v1/cart/items/lip-tint/variant", `{"from":"Rose","to":"Coral"}`), map[string]string{"productID": "lip-tint"})
	CartUpdateVariant(svc, nil).ServeHTTP(httptest.NewRecorder(), req)

	if svc.variant.OldVariant == nil || *svc.variant.OldVariant != "Rose" {
		t.Fatalf("unexpected old variant %+v", svc.variant)
	}
	if svc.variant.NewVariant == nil || *svc.variant.NewVariant != "Coral" {
		t.Fatalf("unexpected new variant %+v", svc.variant)
	}
}

func TestShippingQuote(t *testing.T) {
	svc := &stubCartService{snap: sampleSnapshot(1600)}

	resp := httptest.NewRecorder()
	ShippingQuote(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/cart/shipping?region=NCR", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var quote shipping.Quote
	decodeData(t, resp, &quote)
	if quote.Tier != shipping.TierMetro {
		t.Fatalf("expected metro tier, got %q", quote.Tier)
	}
	if quote.Shipping == nil || !quote.Shipping.IsZero() {
		t.Fatalf("expected free shipping above threshold, got %v", quote.Shipping)
	}

	resp = httptest.NewRecorder()
	ShippingQuote(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/cart/shipping", ""))
	quote = shipping.Quote{}
	decodeData(t, resp, &quote)
	if quote.Shipping != nil || quote.Total != nil {
		t.Fatalf("expected undetermined shipping without a region, got %+v", quote)
	}
}

func TestCartPropagatesServiceErrors(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	resp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/cart/items", `{"productId":"ghost"}`))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
