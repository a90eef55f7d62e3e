package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowhaus/storefront-backend/pkg/db/models"
)

// Repository persists saved addresses. Every query is scoped to the owner.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// List returns the user's addresses, default ones first, then oldest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]models.SavedAddress, error) {
	var rows []models.SavedAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Count(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.SavedAddress{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *Repository) Find(ctx context.Context, userID, id uuid.UUID) (*models.SavedAddress, error) {
	var row models.SavedAddress
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Create(ctx context.Context, row *models.SavedAddress) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) Save(ctx context.Context, row *models.SavedAddress) error {
	return r.db.WithContext(ctx).Save(row).Error
}

// Delete removes the address and reports whether a row was owned and gone.
func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.SavedAddress{})
	return res.RowsAffected > 0, res.Error
}
