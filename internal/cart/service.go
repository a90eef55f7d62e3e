package cart

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/logger"
)

// ProductLookup resolves catalog data for a product/variant so prices never
// come from the client.
type ProductLookup interface {
	ResolveItem(ctx context.Context, productID string, variant *string) (Item, error)
}

type operationCounter interface {
	IncOperation(operation string)
}

// Service loads a cart, applies one operation and saves it back.
type Service interface {
	Get(ctx context.Context, owner Owner) (*Snapshot, error)
	Add(ctx context.Context, owner Owner, input AddInput) (*Snapshot, error)
	Remove(ctx context.Context, owner Owner, productID string, variant *string) (*Snapshot, error)
	UpdateQuantity(ctx context.Context, owner Owner, input QuantityInput) (*Snapshot, error)
	UpdateVariant(ctx context.Context, owner Owner, input VariantInput) (*Snapshot, error)
	Clear(ctx context.Context, owner Owner) error
	Merge(ctx context.Context, from, to Owner) (*Snapshot, error)
}

// AddInput is the payload of an add-to-bag action.
type AddInput struct {
	ProductID    string
	VariantLabel *string
}

// QuantityInput moves a line's quantity by Delta.
type QuantityInput struct {
	ProductID    string
	VariantLabel *string
	Delta        int
}

// VariantInput re-keys a line from one variant to another.
type VariantInput struct {
	ProductID  string
	OldVariant *string
	NewVariant *string
}

type service struct {
	repo     Repository
	products ProductLookup
	metrics  operationCounter
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided repository.
func NewService(repo Repository, products ProductLookup, metrics operationCounter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, products: products, metrics: metrics, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, owner Owner) (*Snapshot, error) {
	store, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	snap := store.Snapshot()
	return &snap, nil
}

func (s *service) Add(ctx context.Context, owner Owner, input AddInput) (*Snapshot, error) {
	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	item, err := s.products.ResolveItem(ctx, productID, NormalizeVariant(input.VariantLabel))
	if err != nil {
		return nil, err
	}
	snap, err := s.mutate(ctx, owner, "add", func(store *Store) {
		store.AddItem(item)
	})
	if err != nil {
		return nil, err
	}
	snap.Opened = true
	return snap, nil
}

func (s *service) Remove(ctx context.Context, owner Owner, productID string, variant *string) (*Snapshot, error) {
	return s.mutate(ctx, owner, "remove", func(store *Store) {
		store.RemoveItem(productID, variant)
	})
}

func (s *service) UpdateQuantity(ctx context.Context, owner Owner, input QuantityInput) (*Snapshot, error) {
	if input.Delta == 0 {
		return s.Get(ctx, owner)
	}
	return s.mutate(ctx, owner, "update_quantity", func(store *Store) {
		store.UpdateQuantity(input.ProductID, input.VariantLabel, input.Delta)
	})
}

func (s *service) UpdateVariant(ctx context.Context, owner Owner, input VariantInput) (*Snapshot, error) {
	target := Target{VariantLabel: NormalizeVariant(input.NewVariant)}
	item, err := s.products.ResolveItem(ctx, input.ProductID, target.VariantLabel)
	if err != nil {
		return nil, err
	}
	target.ImageRef = item.ImageRef
	return s.mutate(ctx, owner, "update_variant", func(store *Store) {
		store.UpdateVariant(input.ProductID, input.OldVariant, target)
	})
}

func (s *service) Clear(ctx context.Context, owner Owner) error {
	if !owner.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner is required")
	}
	if err := s.repo.Clear(ctx, owner); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	if s.metrics != nil {
		s.metrics.IncOperation("clear")
	}
	return nil
}

// Merge folds the lines of from into to using add semantics quantity-wise,
// then clears from. Used when a guest signs in.
func (s *service) Merge(ctx context.Context, from, to Owner) (*Snapshot, error) {
	if from == to {
		return s.Get(ctx, to)
	}
	source, err := s.load(ctx, from)
	if err != nil {
		return nil, err
	}
	if source.IsEmpty() {
		return s.Get(ctx, to)
	}
	snap, err := s.mutate(ctx, to, "merge", func(store *Store) {
		for _, line := range source.Lines() {
			item := Item{
				ProductID:    line.ProductID,
				VariantLabel: line.VariantLabel,
				Name:         line.Name,
				UnitPrice:    line.UnitPrice,
				ImageRef:     line.ImageRef,
			}
			for i := 0; i < line.Quantity; i++ {
				store.AddItem(item)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.Clear(ctx, from); err != nil {
		logCtx := s.logg.WithField(ctx, "owner", string(from))
		s.logg.Error(logCtx, "cart.merge_clear_source_failed", err)
	}
	return snap, nil
}

func (s *service) load(ctx context.Context, owner Owner) (*Store, error) {
	if !owner.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner is required")
	}
	lines, err := s.repo.Load(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return NewStore(lines), nil
}

// mutate applies fn to a freshly loaded store and persists the result. The
// in-memory change is discarded when the save fails.
func (s *service) mutate(ctx context.Context, owner Owner, operation string, fn func(*Store)) (*Snapshot, error) {
	store, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	fn(store)
	if err := s.repo.Save(ctx, owner, store.Lines()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	if s.metrics != nil {
		s.metrics.IncOperation(operation)
	}
	snap := store.Snapshot()
	return &snap, nil
}
