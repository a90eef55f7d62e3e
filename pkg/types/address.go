package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// DeliveryAddress is the Philippine delivery address captured at checkout and
// stored on saved addresses and orders. Persisted as JSONB on orders.
type DeliveryAddress struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email,omitempty"`
	Region        string `json:"region"`
	Province      string `json:"province"`
	City          string `json:"city"`
	Barangay      string `json:"barangay"`
	StreetAddress string `json:"streetAddress"`
	PostalCode    string `json:"postalCode"`
	Phone         string `json:"phone"`
}

// FullName joins first and last name.
func (a DeliveryAddress) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// IsZero reports whether no address field is set.
func (a DeliveryAddress) IsZero() bool {
	return a == DeliveryAddress{}
}

// Value marshals the address into JSON.
func (a DeliveryAddress) Value() (driver.Value, error) {
	buf, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes a JSON column into the address.
func (a *DeliveryAddress) Scan(value interface{}) error {
	if value == nil {
		*a = DeliveryAddress{}
		return nil
	}
	raw, ok := toBytes(value)
	if !ok {
		return fmt.Errorf("delivery address: unsupported scan type %T", value)
	}
	var decoded DeliveryAddress
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("delivery address: %w", err)
	}
	*a = decoded
	return nil
}

func toBytes(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}
