package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowhaus/storefront-backend/internal/cart"
	"github.com/glowhaus/storefront-backend/pkg/db/models"
	"github.com/glowhaus/storefront-backend/pkg/enums"
	"github.com/glowhaus/storefront-backend/pkg/types"
)

// Request identifies one checkout attempt.
type Request struct {
	SessionID string
	UserID    *uuid.UUID
	// IdempotencyKey is generated once per attempt and resent on retries.
	IdempotencyKey string
	// Confirmed is set once a cash-on-delivery order has been reviewed.
	Confirmed bool
	// PaymentToken is the card or wallet token from the payment form.
	PaymentToken string
}

// Owner returns the cart the request checks out.
func (r Request) Owner() cart.Owner {
	return cart.OwnerFor(r.UserID, r.SessionID)
}

// Preview is the review step shown before a cash-on-delivery order is placed.
type Preview struct {
	Items          types.LineItems       `json:"items"`
	ItemCount      int                   `json:"itemCount"`
	Subtotal       decimal.Decimal       `json:"subtotal"`
	ShippingCost   decimal.Decimal       `json:"shippingCost"`
	TotalAmount    decimal.Decimal       `json:"totalAmount"`
	Currency       string                `json:"currency"`
	Address        types.DeliveryAddress `json:"customerDetails"`
	Email          string                `json:"customerEmail"`
	PaymentMethod  enums.PaymentMethod   `json:"paymentMethod"`
	WalletProvider enums.WalletProvider  `json:"walletProvider,omitempty"`
}

// OrderView is the public shape of an order, also used as the confirmation
// snapshot.
type OrderView struct {
	ID               uuid.UUID             `json:"id"`
	OrderNumber      string                `json:"orderNumber"`
	Status           enums.OrderStatus     `json:"status"`
	CustomerEmail    string                `json:"customerEmail"`
	CustomerDetails  types.DeliveryAddress `json:"customerDetails"`
	Items            types.LineItems       `json:"items"`
	Subtotal         decimal.Decimal       `json:"subtotal"`
	ShippingCost     decimal.Decimal       `json:"shippingCost"`
	TotalAmount      decimal.Decimal       `json:"totalAmount"`
	Currency         string                `json:"currency"`
	PaymentMethod    enums.PaymentMethod   `json:"paymentMethod"`
	PaymentProvider  *string               `json:"paymentProvider,omitempty"`
	PaymentReference *string               `json:"paymentReference,omitempty"`
	PaidAt           *time.Time            `json:"paidAt,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
}

// HistoryPage is one page of a shopper's order history. NextCursor is empty
// on the last page.
type HistoryPage struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

// SubmitResult is returned by a successful submission.
type SubmitResult struct {
	Order    OrderView `json:"order"`
	Redirect string    `json:"redirect"`
	// Replayed is true when the idempotency key matched an earlier order.
	Replayed bool `json:"replayed"`
}

// TrackingView is what anyone holding an order number may see.
type TrackingView struct {
	OrderNumber string            `json:"orderNumber"`
	Status      enums.OrderStatus `json:"status"`
	ItemCount   int               `json:"itemCount"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
	Currency    string            `json:"currency"`
	PlacedAt    time.Time         `json:"placedAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// ConfirmationPath is where the storefront shows a placed order.
func ConfirmationPath(orderNumber string) string {
	return "/checkout/confirmation/" + orderNumber
}

func toView(order *models.Order) OrderView {
	return OrderView{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		Status:           order.Status,
		CustomerEmail:    order.CustomerEmail,
		CustomerDetails:  order.CustomerDetails,
		Items:            order.Items,
		Subtotal:         order.Subtotal,
		ShippingCost:     order.ShippingCost,
		TotalAmount:      order.TotalAmount,
		Currency:         order.Currency,
		PaymentMethod:    order.PaymentMethod,
		PaymentProvider:  order.PaymentProvider,
		PaymentReference: order.PaymentReference,
		PaidAt:           order.PaidAt,
		CreatedAt:        order.CreatedAt,
	}
}

func toTracking(order *models.Order) TrackingView {
	return TrackingView{
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		ItemCount:   order.Items.Count(),
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		PlacedAt:    order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

func lineItemsFrom(lines []cart.Line) types.LineItems {
	items := make(types.LineItems, 0, len(lines))
	for _, line := range lines {
		items = append(items, types.LineItem{
			ProductID:    line.ProductID,
			VariantLabel: line.VariantLabel,
			Name:         line.Name,
			UnitPrice:    line.UnitPrice,
			ImageRef:     line.ImageRef,
			Quantity:     line.Quantity,
		})
	}
	return items
}
