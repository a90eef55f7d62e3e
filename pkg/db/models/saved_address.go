package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/pkg/types"
)

// SavedAddress is an account-scoped delivery address.
type SavedAddress struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Label         string    `gorm:"column:label;not null;default:''"`
	FirstName     string    `gorm:"column:first_name;not null"`
	LastName      string    `gorm:"column:last_name;not null"`
	Region        string    `gorm:"column:region;not null"`
	Province      string    `gorm:"column:province;not null"`
	City          string    `gorm:"column:city;not null"`
	Barangay      string    `gorm:"column:barangay;not null"`
	StreetAddress string    `gorm:"column:street_address;not null"`
	PostalCode    string    `gorm:"column:postal_code;not null"`
	Phone         string    `gorm:"column:phone;not null"`
	IsDefault     bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Delivery converts the saved address into the checkout address shape.
func (a SavedAddress) Delivery() types.DeliveryAddress {
	return types.DeliveryAddress{
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Region:        a.Region,
		Province:      a.Province,
		City:          a.City,
		Barangay:      a.Barangay,
		StreetAddress: a.StreetAddress,
		PostalCode:    a.PostalCode,
		Phone:         a.Phone,
	}
}
