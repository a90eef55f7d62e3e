package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowhaus/storefront-backend/pkg/db/models"
)

// GormRepository keeps carts server-side in the cart_lines table.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository constructs a cart repository bound to the provided DB.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormRepository) WithTx(tx *gorm.DB) *GormRepository {
	if tx == nil {
		return r
	}
	return &GormRepository{db: tx}
}

// Load returns the owner's lines in the order they were added.
func (r *GormRepository) Load(ctx context.Context, owner Owner) ([]Line, error) {
	var rows []models.CartLine
	err := r.db.WithContext(ctx).
		Where("owner = ?", string(owner)).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}
	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, lineFromModel(row))
	}
	return lines, nil
}

// Save replaces the owner's lines atomically.
func (r *GormRepository) Save(ctx context.Context, owner Owner, lines []Line) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner = ?", string(owner)).Delete(&models.CartLine{}).Error; err != nil {
			return fmt.Errorf("delete cart lines: %w", err)
		}
		if len(lines) == 0 {
			return nil
		}
		rows := make([]models.CartLine, 0, len(lines))
		for i, line := range lines {
			rows = append(rows, lineToModel(owner, i, line))
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert cart lines: %w", err)
		}
		return nil
	})
}

// Clear removes the owner's lines.
func (r *GormRepository) Clear(ctx context.Context, owner Owner) error {
	if err := r.db.WithContext(ctx).Where("owner = ?", string(owner)).Delete(&models.CartLine{}).Error; err != nil {
		return fmt.Errorf("clear cart lines: %w", err)
	}
	return nil
}

func lineToModel(owner Owner, position int, line Line) models.CartLine {
	variant := ""
	if line.VariantLabel != nil {
		variant = *line.VariantLabel
	}
	return models.CartLine{
		ID:           uuid.New(),
		Owner:        string(owner),
		ProductID:    line.ProductID,
		VariantLabel: variant,
		Name:         line.Name,
		UnitPrice:    line.UnitPrice,
		ImageRef:     line.ImageRef,
		Quantity:     line.Quantity,
		Position:     position,
	}
}

func lineFromModel(row models.CartLine) Line {
	var variant *string
	if row.VariantLabel != "" {
		v := row.VariantLabel
		variant = &v
	}
	return Line{
		ProductID:    row.ProductID,
		VariantLabel: variant,
		Name:         row.Name,
		UnitPrice:    row.UnitPrice,
		ImageRef:     row.ImageRef,
		Quantity:     row.Quantity,
	}
}
