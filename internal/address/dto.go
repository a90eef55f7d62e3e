package address

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/internal/checkout"
	"github.com/glowhaus/storefront-backend/pkg/db/models"
)

// Input is the create/update payload for a saved address.
type Input struct {
	Label         string `json:"label" validate:"max=40"`
	FirstName     string `json:"firstName" validate:"required,max=100"`
	LastName      string `json:"lastName" validate:"required,max=100"`
	Region        string `json:"region" validate:"required"`
	Province      string `json:"province" validate:"required"`
	City          string `json:"city" validate:"required"`
	Barangay      string `json:"barangay" validate:"required"`
	StreetAddress string `json:"streetAddress" validate:"required,max=255"`
	PostalCode    string `json:"postalCode" validate:"required,numeric,max=4"`
	Phone         string `json:"phone" validate:"required,numeric,len=11"`
	IsDefault     bool   `json:"isDefault"`
}

// normalized trims text fields and strips formatting from numbers the same
// way the checkout form does.
func (in Input) normalized() Input {
	out := Input{
		Label:         strings.TrimSpace(in.Label),
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Region:        strings.ToUpper(strings.TrimSpace(in.Region)),
		Province:      strings.TrimSpace(in.Province),
		City:          strings.TrimSpace(in.City),
		Barangay:      strings.TrimSpace(in.Barangay),
		StreetAddress: strings.TrimSpace(in.StreetAddress),
		PostalCode:    checkout.DigitsOnly(in.PostalCode, 0),
		Phone:         checkout.DigitsOnly(in.Phone, 0),
		IsDefault:     in.IsDefault,
	}
	return out
}

func (in Input) apply(row *models.SavedAddress) {
	row.Label = in.Label
	row.FirstName = in.FirstName
	row.LastName = in.LastName
	row.Region = in.Region
	row.Province = in.Province
	row.City = in.City
	row.Barangay = in.Barangay
	row.StreetAddress = in.StreetAddress
	row.PostalCode = in.PostalCode
	row.Phone = in.Phone
	row.IsDefault = in.IsDefault
}

// View is the saved address as returned to the account page.
type View struct {
	ID            uuid.UUID `json:"id"`
	Label         string    `json:"label,omitempty"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Region        string    `json:"region"`
	Province      string    `json:"province"`
	City          string    `json:"city"`
	Barangay      string    `json:"barangay"`
	StreetAddress string    `json:"streetAddress"`
	PostalCode    string    `json:"postalCode"`
	Phone         string    `json:"phone"`
	IsDefault     bool      `json:"isDefault"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toView(row models.SavedAddress) View {
	return View{
		ID:            row.ID,
		Label:         row.Label,
		FirstName:     row.FirstName,
		LastName:      row.LastName,
		Region:        row.Region,
		Province:      row.Province,
		City:          row.City,
		Barangay:      row.Barangay,
		StreetAddress: row.StreetAddress,
		PostalCode:    row.PostalCode,
		Phone:         row.Phone,
		IsDefault:     row.IsDefault,
		CreatedAt:     row.CreatedAt,
	}
}
