package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowhaus/storefront-backend/pkg/db/models"
	"github.com/glowhaus/storefront-backend/pkg/enums"
	"github.com/glowhaus/storefront-backend/pkg/pagination"
)

const (
	orderNumberSequence = "order_number_seq"
	// idempotencyConstraint is the unique index guarding retried submissions.
	idempotencyConstraint = "ux_orders_idempotency_key"
)

// ErrStatusChanged is returned when a status update lost a race.
var ErrStatusChanged = errors.New("order status changed concurrently")

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	seq, err := r.nextOrderSeq(ctx)
	if err != nil {
		return err
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.OrderSeq = seq
	order.OrderNumber = FormatOrderNumber(seq)
	return r.db.WithContext(ctx).Create(order).Error
}

// nextOrderSeq draws from the Postgres sequence. SQLite has no sequences, so
// tests fall back to max+1 inside the surrounding transaction.
func (r *repository) nextOrderSeq(ctx context.Context) (int64, error) {
	var seq int64
	query := fmt.Sprintf("SELECT nextval('%s')", orderNumberSequence)
	if r.db.Dialector.Name() == "sqlite" {
		query = "SELECT COALESCE(MAX(order_seq), 0) + 1 FROM orders"
	}
	if err := r.db.WithContext(ctx).Raw(query).Scan(&seq).Error; err != nil {
		return 0, fmt.Errorf("next order number: %w", err)
	}
	return seq, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.first(ctx, "order_number = ?", orderNumber)
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	return r.first(ctx, "idempotency_key = ?", key)
}

// LatestForUser returns nil when the user has never ordered.
func (r *repository) LatestForUser(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	order, err := r.first(ctx, "user_id = ?", userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return order, err
}

// ListForUser returns up to limit orders newest first, starting after cursor
// when one is given.
func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Scopes(pagination.Keyset(cursor, limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus moves an order from one status to the next. It fails with
// ErrStatusChanged when the stored status is no longer from.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, paidAt *time.Time) error {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where(query, arg).
		Order("created_at DESC").
		Order("order_seq DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
