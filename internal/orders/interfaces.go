package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowhaus/storefront-backend/internal/cart"
	"github.com/glowhaus/storefront-backend/internal/checkout"
	"github.com/glowhaus/storefront-backend/pkg/db/models"
	"github.com/glowhaus/storefront-backend/pkg/enums"
	"github.com/glowhaus/storefront-backend/pkg/outbox"
	"github.com/glowhaus/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Create assigns the id, sequence and order number before inserting.
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	LatestForUser(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, paidAt *time.Time) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type draftSource interface {
	Current(ctx context.Context, sessionID string) (checkout.Draft, error)
	Validate(draft checkout.Draft) error
	Clear(ctx context.Context, sessionID string) error
}

type cartSource interface {
	Get(ctx context.Context, owner cart.Owner) (*cart.Snapshot, error)
	Clear(ctx context.Context, owner cart.Owner) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type confirmationStore interface {
	Save(ctx context.Context, sessionID string, view OrderView) error
	Load(ctx context.Context, sessionID, orderNumber string) (*OrderView, error)
}

type submissionObserver interface {
	ObserveSubmission(paymentMethod, outcome string, elapsed time.Duration)
}
