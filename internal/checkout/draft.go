package checkout

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/glowhaus/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/types"
)

const (
	// PhoneDigits is the length of a Philippine mobile number (09XXXXXXXXX).
	PhoneDigits = 11
	// PostalCodeDigits caps the postal code input.
	PostalCodeDigits = 4
)

// Draft is the in-progress checkout form. It is persisted per browser session
// on every edit and discarded once an order is written.
type Draft struct {
	Email          string               `json:"email" validate:"required,email"`
	FirstName      string               `json:"firstName" validate:"required,max=100"`
	LastName       string               `json:"lastName" validate:"required,max=100"`
	Region         string               `json:"region" validate:"required"`
	Province       string               `json:"province" validate:"required"`
	City           string               `json:"city" validate:"required"`
	Barangay       string               `json:"barangay" validate:"required"`
	StreetAddress  string               `json:"streetAddress" validate:"required,max=255"`
	PostalCode     string               `json:"postalCode" validate:"required,postal4"`
	Phone          string               `json:"phone" validate:"required,ph_phone"`
	PaymentMethod  enums.PaymentMethod  `json:"paymentMethod" validate:"required,oneof=card wallet cod"`
	WalletProvider enums.WalletProvider `json:"walletProvider,omitempty" validate:"required_if=PaymentMethod wallet,omitempty,oneof=gcash maya grabpay"`
}

// Address returns the delivery portion of the draft as stored on orders.
func (d Draft) Address() types.DeliveryAddress {
	return types.DeliveryAddress{
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		Email:         d.Email,
		Region:        d.Region,
		Province:      d.Province,
		City:          d.City,
		Barangay:      d.Barangay,
		StreetAddress: d.StreetAddress,
		PostalCode:    d.PostalCode,
		Phone:         d.Phone,
	}
}

// ApplyAddress overwrites every address field of the draft with addr. Email is
// only replaced when addr carries one.
func (d *Draft) ApplyAddress(addr types.DeliveryAddress) {
	d.FirstName = addr.FirstName
	d.LastName = addr.LastName
	if addr.Email != "" {
		d.Email = addr.Email
	}
	d.Region = addr.Region
	d.Province = addr.Province
	d.City = addr.City
	d.Barangay = addr.Barangay
	d.StreetAddress = addr.StreetAddress
	d.PostalCode = DigitsOnly(addr.PostalCode, PostalCodeDigits)
	d.Phone = DigitsOnly(addr.Phone, PhoneDigits)
}

// Patch carries field edits. Nil fields are left alone.
type Patch struct {
	Email          *string `json:"email"`
	FirstName      *string `json:"firstName"`
	LastName       *string `json:"lastName"`
	Region         *string `json:"region"`
	Province       *string `json:"province"`
	City           *string `json:"city"`
	Barangay       *string `json:"barangay"`
	StreetAddress  *string `json:"streetAddress"`
	PostalCode     *string `json:"postalCode"`
	Phone          *string `json:"phone"`
	PaymentMethod  *string `json:"paymentMethod"`
	WalletProvider *string `json:"walletProvider"`
}

// Apply mutates d with the patch. Selecting a different region clears
// province and city; selecting a different province clears city.
func (p Patch) Apply(d *Draft) {
	if p.Email != nil {
		d.Email = strings.TrimSpace(*p.Email)
	}
	if p.FirstName != nil {
		d.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		d.LastName = *p.LastName
	}
	if p.Region != nil && *p.Region != d.Region {
		d.Region = *p.Region
		d.Province = ""
		d.City = ""
	}
	if p.Province != nil && *p.Province != d.Province {
		d.Province = *p.Province
		d.City = ""
	}
	if p.City != nil {
		d.City = *p.City
	}
	if p.Barangay != nil {
		d.Barangay = *p.Barangay
	}
	if p.StreetAddress != nil {
		d.StreetAddress = *p.StreetAddress
	}
	if p.PostalCode != nil {
		d.PostalCode = DigitsOnly(*p.PostalCode, PostalCodeDigits)
	}
	if p.Phone != nil {
		d.Phone = DigitsOnly(*p.Phone, PhoneDigits)
	}
	if p.PaymentMethod != nil {
		d.PaymentMethod = enums.PaymentMethod(strings.ToLower(strings.TrimSpace(*p.PaymentMethod)))
		if d.PaymentMethod != enums.PaymentMethodWallet {
			d.WalletProvider = ""
		}
	}
	if p.WalletProvider != nil {
		d.WalletProvider = enums.WalletProvider(strings.ToLower(strings.TrimSpace(*p.WalletProvider)))
	}
}

// DigitsOnly strips non-digits and truncates to max when max > 0.
func DigitsOnly(value string, max int) string {
	var b strings.Builder
	for _, r := range value {
		if r < '0' || r > '9' {
			continue
		}
		if max > 0 && b.Len() >= max {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

var draftValidator = newDraftValidator()

func newDraftValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("ph_phone", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return len(value) == PhoneDigits && allDigits(value)
	})
	_ = v.RegisterValidation("postal4", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return len(value) > 0 && len(value) <= PostalCodeDigits && allDigits(value)
	})
	return v
}

func allDigits(value string) bool {
	for _, r := range value {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ValidateDraft checks the draft is ready for submission. Failures are
// returned as CodeValidation with per-field details.
func ValidateDraft(d Draft) error {
	err := draftValidator.Struct(d)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout details are incomplete")
	}
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = fieldMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "checkout details are incomplete").WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "email":
		return "must be a valid email"
	case "ph_phone":
		return fmt.Sprintf("must be %d digits", PhoneDigits)
	case "postal4":
		return fmt.Sprintf("must be at most %d digits", PostalCodeDigits)
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "is invalid"
}
