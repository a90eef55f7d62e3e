package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/internal/cart"
	"github.com/glowhaus/storefront-backend/internal/locations"
	"github.com/glowhaus/storefront-backend/internal/shipping"
	"github.com/glowhaus/storefront-backend/pkg/db/models"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/logger"
)

// Source names where a hydrated draft came from.
type Source string

const (
	SourceSavedAddress   Source = "saved_address"
	SourceLastOrder      Source = "last_order"
	SourcePersistedDraft Source = "persisted_draft"
	SourceEmpty          Source = "empty"
)

// Identity is what checkout knows about a signed-in shopper.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	FirstName string
	LastName  string
}

type addressLister interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.SavedAddress, error)
}

type orderHistory interface {
	LatestForUser(ctx context.Context, userID uuid.UUID) (*models.Order, error)
}

type cartReader interface {
	Get(ctx context.Context, owner cart.Owner) (*cart.Snapshot, error)
}

// HydrateInput identifies the checkout page load.
type HydrateInput struct {
	SessionID string
	User      *Identity
}

// HydrateResult is the draft shown when the checkout page mounts.
type HydrateResult struct {
	Draft  Draft  `json:"draft"`
	Source Source `json:"source"`
}

// Options lists the location choices for the current selection.
type Options struct {
	Regions      []locations.Region `json:"regions"`
	Provinces    []string           `json:"provinces,omitempty"`
	Cities       []string           `json:"cities,omitempty"`
	CityFreeText bool               `json:"cityFreeText"`
}

// QuoteResult carries cart totals with shipping for the draft's region.
type QuoteResult struct {
	shipping.Quote
	ItemCount int `json:"itemCount"`
}

// Manager assembles a checkout draft across an editing session.
type Manager struct {
	store     DraftStore
	addresses addressLister
	orders    orderHistory
	carts     cartReader
	directory *locations.Directory
	logg      *logger.Logger
}

// ManagerParams groups the Manager's collaborators.
type ManagerParams struct {
	Store     DraftStore
	Addresses addressLister
	Orders    orderHistory
	Carts     cartReader
	Directory *locations.Directory
	Logger    *logger.Logger
}

// NewManager validates the collaborators and builds a Manager.
func NewManager(p ManagerParams) (*Manager, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("draft store required")
	}
	if p.Addresses == nil {
		return nil, fmt.Errorf("address lister required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("order history required")
	}
	if p.Carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if p.Directory == nil {
		return nil, fmt.Errorf("location directory required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Manager{
		store:     p.Store,
		addresses: p.Addresses,
		orders:    p.Orders,
		carts:     p.Carts,
		directory: p.Directory,
		logg:      logg,
	}, nil
}

// Hydrate picks the starting draft: the user's first saved address, else
// their latest order's details, else the session's persisted draft, else an
// empty draft prefilled with what is known about the user. The chosen draft
// is persisted for the session.
func (m *Manager) Hydrate(ctx context.Context, input HydrateInput) (*HydrateResult, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}

	persisted, err := m.store.Load(ctx, input.SessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout draft")
	}

	result := m.resolve(ctx, input, persisted)
	if err := m.store.Save(ctx, input.SessionID, result.Draft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist checkout draft")
	}
	return result, nil
}

func (m *Manager) resolve(ctx context.Context, input HydrateInput, persisted *Draft) *HydrateResult {
	var base Draft
	if persisted != nil {
		base.PaymentMethod = persisted.PaymentMethod
		base.WalletProvider = persisted.WalletProvider
	}

	if user := input.User; user != nil {
		base.Email = user.Email
		logCtx := m.logg.WithUserID(ctx, user.UserID.String())

		addresses, err := m.addresses.List(ctx, user.UserID)
		if err != nil {
			m.logg.Error(logCtx, "checkout.hydrate_addresses_failed", err)
		} else if len(addresses) > 0 {
			base.ApplyAddress(addresses[0].Delivery())
			return &HydrateResult{Draft: base, Source: SourceSavedAddress}
		}

		order, err := m.orders.LatestForUser(ctx, user.UserID)
		if err != nil {
			m.logg.Error(logCtx, "checkout.hydrate_last_order_failed", err)
		} else if order != nil && !order.CustomerDetails.IsZero() {
			base.ApplyAddress(order.CustomerDetails)
			if base.Email == "" {
				base.Email = order.CustomerEmail
			}
			return &HydrateResult{Draft: base, Source: SourceLastOrder}
		}
	}

	if persisted != nil {
		return &HydrateResult{Draft: *persisted, Source: SourcePersistedDraft}
	}

	if user := input.User; user != nil {
		base.FirstName = user.FirstName
		base.LastName = user.LastName
	}
	return &HydrateResult{Draft: base, Source: SourceEmpty}
}

// Current returns the session's draft, empty when none is stored.
func (m *Manager) Current(ctx context.Context, sessionID string) (Draft, error) {
	draft, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return Draft{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout draft")
	}
	if draft == nil {
		return Draft{}, nil
	}
	return *draft, nil
}

// Update applies field edits and re-persists the full draft.
func (m *Manager) Update(ctx context.Context, sessionID string, patch Patch) (*Draft, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}
	draft, err := m.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	patch.Apply(&draft)
	if err := m.store.Save(ctx, sessionID, draft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist checkout draft")
	}
	return &draft, nil
}

// Options returns the selectable regions plus the provinces or cities under
// the current selection.
func (m *Manager) Options(region, province string) Options {
	opts := Options{Regions: m.directory.Regions()}
	if strings.TrimSpace(region) == "" {
		return opts
	}
	for _, p := range m.directory.Provinces(region) {
		opts.Provinces = append(opts.Provinces, p.Name)
	}
	if strings.TrimSpace(province) == "" {
		return opts
	}
	p, ok := m.directory.Province(region, province)
	if !ok {
		opts.CityFreeText = true
		return opts
	}
	opts.Cities = p.Cities
	opts.CityFreeText = p.CityFreeText()
	return opts
}

// Validate checks the draft is complete and that its region, province and
// city agree with the location directory.
func (m *Manager) Validate(draft Draft) error {
	err := ValidateDraft(draft)
	_, _, placeErr := m.directory.Check(draft.Region, draft.Province, draft.City)
	var mismatch *locations.Mismatch
	if !errors.As(placeErr, &mismatch) {
		return err
	}
	details := map[string]string{}
	if perr := pkgerrors.As(err); perr != nil {
		if existing, ok := perr.Details().(map[string]string); ok {
			details = existing
		}
	}
	details[mismatch.Field] = mismatch.Problem
	return pkgerrors.New(pkgerrors.CodeValidation, "checkout details are incomplete").WithDetails(details)
}

// Quote reads the cart and prices shipping for the draft's region.
func (m *Manager) Quote(ctx context.Context, sessionID string, owner cart.Owner) (*QuoteResult, error) {
	draft, err := m.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap, err := m.carts.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &QuoteResult{
		Quote:     shipping.NewQuote(draft.Region, snap.Subtotal),
		ItemCount: snap.TotalItemCount,
	}, nil
}

// Clear drops the session's draft. Only called after an order is written.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	if err := m.store.Clear(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear checkout draft")
	}
	return nil
}
