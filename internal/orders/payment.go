package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"

	"github.com/glowhaus/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/square"
)

// Provider names recorded on paid orders.
const (
	ProviderSimulated = "simulated"
	ProviderSquare    = "square"
)

// PaymentRequest is what a gateway needs to confirm a card or wallet payment.
type PaymentRequest struct {
	IdempotencyKey string
	Method         enums.PaymentMethod
	WalletProvider enums.WalletProvider
	Token          string
	Amount         decimal.Decimal
	Currency       string
	Email          string
}

// PaymentConfirmation identifies a settled payment.
type PaymentConfirmation struct {
	Provider  string
	Reference string
}

// PaymentGateway confirms payment before an order is written. Declines are
// returned as CodePayment errors.
type PaymentGateway interface {
	Confirm(ctx context.Context, req PaymentRequest) (*PaymentConfirmation, error)
}

var simulatedNamespace = uuid.MustParse("6f1f7a4e-3c55-4c8e-9a57-0b0d2d7e6a11")

// SimulatedGateway approves every payment. The reference is derived from the
// idempotency key so a retried attempt reports the same reference.
type SimulatedGateway struct{}

func NewSimulatedGateway() SimulatedGateway {
	return SimulatedGateway{}
}

func (SimulatedGateway) Confirm(_ context.Context, req PaymentRequest) (*PaymentConfirmation, error) {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	ref := uuid.NewSHA1(simulatedNamespace, []byte(req.IdempotencyKey))
	return &PaymentConfirmation{Provider: ProviderSimulated, Reference: "sim_" + ref.String()}, nil
}

type paymentCreator interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

// SquareGateway charges the payment token through Square.
type SquareGateway struct {
	client paymentCreator
}

func NewSquareGateway(client paymentCreator) (*SquareGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &SquareGateway{client: client}, nil
}

func (g *SquareGateway) Confirm(ctx context.Context, req PaymentRequest) (*PaymentConfirmation, error) {
	if strings.TrimSpace(req.Token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment token is required")
	}
	note := "card"
	if req.Method == enums.PaymentMethodWallet {
		note = "wallet:" + string(req.WalletProvider)
	}
	payment, err := g.client.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    square.AmountCentsFor(req.Amount),
		Currency:       req.Currency,
		SourceID:       req.Token,
		IdempotencyKey: req.IdempotencyKey,
		Note:           note,
		BuyerEmail:     req.Email,
	})
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.GetID() == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square returned no payment id")
	}
	return &PaymentConfirmation{Provider: ProviderSquare, Reference: *payment.GetID()}, nil
}
