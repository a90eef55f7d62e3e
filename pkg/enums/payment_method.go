package enums

import "fmt"

// PaymentMethod describes how a shopper settles an order at checkout.
type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodWallet         PaymentMethod = "wallet"
	PaymentMethodCashOnDelivery PaymentMethod = "cod"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodWallet,
	PaymentMethodCashOnDelivery,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresGateway reports whether the method needs a payment confirmation
// before the order is written.
func (p PaymentMethod) RequiresGateway() bool {
	return p == PaymentMethodCard || p == PaymentMethodWallet
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// WalletProvider names the e-wallet brand used for a wallet payment.
type WalletProvider string

const (
	WalletProviderGCash   WalletProvider = "gcash"
	WalletProviderMaya    WalletProvider = "maya"
	WalletProviderGrabPay WalletProvider = "grabpay"
)

var validWalletProviders = []WalletProvider{
	WalletProviderGCash,
	WalletProviderMaya,
	WalletProviderGrabPay,
}

// IsValid reports whether the value is a known WalletProvider.
func (w WalletProvider) IsValid() bool {
	for _, candidate := range validWalletProviders {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletProvider converts raw input into a WalletProvider.
func ParseWalletProvider(value string) (WalletProvider, error) {
	for _, candidate := range validWalletProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet provider %q", value)
}
