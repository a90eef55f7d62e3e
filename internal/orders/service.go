package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowhaus/storefront-backend/internal/shipping"
	dbpkg "github.com/glowhaus/storefront-backend/pkg/db"
	"github.com/glowhaus/storefront-backend/pkg/db/models"
	"github.com/glowhaus/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/metrics"
	"github.com/glowhaus/storefront-backend/pkg/outbox"
	"github.com/glowhaus/storefront-backend/pkg/outbox/payloads"
	"github.com/glowhaus/storefront-backend/pkg/pagination"
)

// Service turns a checkout draft and cart into a persisted order.
type Service interface {
	Review(ctx context.Context, req Request) (*Preview, error)
	Submit(ctx context.Context, req Request) (*SubmitResult, error)
	Confirmation(ctx context.Context, req Request, orderNumber string) (*OrderView, error)
	Track(ctx context.Context, ref string) (*TrackingView, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Params) (*HistoryPage, error)
	AdvanceStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*OrderView, error)
}

// ServiceParams groups the submission pipeline's collaborators.
type ServiceParams struct {
	Repo          Repository
	Tx            txRunner
	Drafts        draftSource
	Carts         cartSource
	Outbox        outboxPublisher
	Gateway       PaymentGateway
	Confirmations confirmationStore
	Metrics       submissionObserver
	Currency      string
	Logger        *logger.Logger
	Clock         func() time.Time
}

type service struct {
	repo          Repository
	tx            txRunner
	drafts        draftSource
	carts         cartSource
	outbox        outboxPublisher
	gateway       PaymentGateway
	confirmations confirmationStore
	metrics       submissionObserver
	currency      string
	logg          *logger.Logger
	now           func() time.Time
}

// NewService validates the collaborators and builds the order service.
func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Drafts == nil:
		return nil, fmt.Errorf("draft source required")
	case p.Carts == nil:
		return nil, fmt.Errorf("cart source required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case p.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case p.Confirmations == nil:
		return nil, fmt.Errorf("confirmation store required")
	}
	currency := strings.TrimSpace(p.Currency)
	if currency == "" {
		currency = "PHP"
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:          p.Repo,
		tx:            p.Tx,
		drafts:        p.Drafts,
		carts:         p.Carts,
		outbox:        p.Outbox,
		gateway:       p.Gateway,
		confirmations: p.Confirmations,
		metrics:       p.Metrics,
		currency:      currency,
		logg:          logg,
		now:           now,
	}, nil
}

// prepare validates the draft and cart and prices the order.
func (s *service) prepare(ctx context.Context, req Request) (*Preview, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}
	draft, err := s.drafts.Current(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Validate(draft); err != nil {
		return nil, err
	}

	snap, err := s.carts.Get(ctx, req.Owner())
	if err != nil {
		return nil, err
	}
	if snap == nil || len(snap.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}

	items := lineItemsFrom(snap.Items)
	subtotal := items.Subtotal()
	fee := shipping.ComputeShipping(draft.Region, subtotal)
	if fee == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout details are incomplete").
			WithDetails(map[string]string{"region": "is required"})
	}

	preview := &Preview{
		Items:          items,
		ItemCount:      items.Count(),
		Subtotal:       subtotal,
		ShippingCost:   *fee,
		TotalAmount:    subtotal.Add(*fee),
		Currency:       s.currency,
		Address:        draft.Address(),
		Email:          strings.TrimSpace(draft.Email),
		PaymentMethod:  draft.PaymentMethod,
		WalletProvider: draft.WalletProvider,
	}
	if preview.PaymentMethod != enums.PaymentMethodWallet {
		preview.WalletProvider = ""
	}
	return preview, nil
}

// Review prices the order for the cash-on-delivery confirmation step.
// Nothing is written.
func (s *service) Review(ctx context.Context, req Request) (*Preview, error) {
	return s.prepare(ctx, req)
}

func (s *service) Submit(ctx context.Context, req Request) (*SubmitResult, error) {
	started := s.now()
	method := "unknown"
	outcome := metrics.OutcomeFailed
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveSubmission(method, outcome, s.now().Sub(started))
		}
	}()

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		outcome = metrics.OutcomeRejected
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	req.IdempotencyKey = key

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"session_id":      req.SessionID,
		"idempotency_key": key,
	})

	if existing, err := s.repo.FindByIdempotencyKey(ctx, key); err == nil {
		method = existing.PaymentMethod.String()
		result, replayErr := s.replay(req, existing)
		if replayErr != nil {
			outcome = metrics.OutcomeRejected
			return nil, replayErr
		}
		outcome = metrics.OutcomeReplayed
		return result, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order by idempotency key")
	}

	preview, err := s.prepare(ctx, req)
	if err != nil {
		outcome = metrics.OutcomeRejected
		return nil, err
	}
	method = preview.PaymentMethod.String()

	order := &models.Order{
		IdempotencyKey:  key,
		UserID:          req.UserID,
		SessionID:       req.SessionID,
		CustomerEmail:   preview.Email,
		CustomerDetails: preview.Address,
		Items:           preview.Items,
		Subtotal:        preview.Subtotal,
		ShippingCost:    preview.ShippingCost,
		TotalAmount:     preview.TotalAmount,
		Currency:        preview.Currency,
		PaymentMethod:   preview.PaymentMethod,
		Status:          enums.OrderStatusPending,
	}

	if preview.PaymentMethod.RequiresGateway() {
		confirmation, err := s.gateway.Confirm(ctx, PaymentRequest{
			IdempotencyKey: key,
			Method:         preview.PaymentMethod,
			WalletProvider: preview.WalletProvider,
			Token:          req.PaymentToken,
			Amount:         preview.TotalAmount,
			Currency:       preview.Currency,
			Email:          preview.Email,
		})
		if err != nil {
			switch pkgerrors.CodeOf(err) {
			case pkgerrors.CodePayment:
				outcome = metrics.OutcomeDeclined
				return nil, err
			case pkgerrors.CodeValidation:
				outcome = metrics.OutcomeRejected
				return nil, err
			}
			s.logg.Error(logCtx, "orders.payment_failed", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm payment")
		}
		paidAt := s.now().UTC()
		order.Status = enums.OrderStatusPaid
		order.PaymentProvider = &confirmation.Provider
		order.PaymentReference = &confirmation.Reference
		order.PaidAt = &paidAt
	} else if !req.Confirmed {
		outcome = metrics.OutcomeRejected
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cash on delivery orders must be reviewed first").
			WithDetails(map[string]string{"step": "review"})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, placedEvent(order, req))
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, idempotencyConstraint) || dbpkg.IsUniqueViolation(err, "orders.idempotency_key") {
			existing, findErr := s.repo.FindByIdempotencyKey(ctx, key)
			if findErr == nil {
				result, replayErr := s.replay(req, existing)
				if replayErr == nil {
					outcome = metrics.OutcomeReplayed
				}
				return result, replayErr
			}
		}
		s.logg.Error(logCtx, "orders.persist_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	view := toView(order)
	s.finish(logCtx, req, view)
	outcome = metrics.OutcomeCreated

	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"order_number":   order.OrderNumber,
		"payment_method": order.PaymentMethod,
		"status":         order.Status,
	}), "orders.submitted")

	return &SubmitResult{Order: view, Redirect: ConfirmationPath(order.OrderNumber)}, nil
}

// finish runs the post-commit steps. The order is already durable, so
// failures are only logged.
func (s *service) finish(ctx context.Context, req Request, view OrderView) {
	if err := s.confirmations.Save(ctx, req.SessionID, view); err != nil {
		s.logg.Error(ctx, "orders.confirmation_save_failed", err)
	}
	if err := s.carts.Clear(ctx, req.Owner()); err != nil {
		s.logg.Error(ctx, "orders.cart_clear_failed", err)
	}
	if err := s.drafts.Clear(ctx, req.SessionID); err != nil {
		s.logg.Error(ctx, "orders.draft_clear_failed", err)
	}
}

func (s *service) replay(req Request, existing *models.Order) (*SubmitResult, error) {
	if existing.SessionID != req.SessionID && !sameUser(existing.UserID, req.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used by another checkout")
	}
	return &SubmitResult{
		Order:    toView(existing),
		Redirect: ConfirmationPath(existing.OrderNumber),
		Replayed: true,
	}, nil
}

func (s *service) Confirmation(ctx context.Context, req Request, orderNumber string) (*OrderView, error) {
	number, ok := NormalizeOrderRef(orderNumber)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	view, err := s.confirmations.Load(ctx, req.SessionID, number)
	if err != nil {
		s.logg.Error(ctx, "orders.confirmation_load_failed", err)
	} else if view != nil {
		return view, nil
	}

	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.SessionID != req.SessionID && !sameUser(order.UserID, req.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	out := toView(order)
	return &out, nil
}

func (s *service) Track(ctx context.Context, ref string) (*TrackingView, error) {
	number, ok := NormalizeOrderRef(ref)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithDetails(map[string]string{"orderNumber": number})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	view := toTracking(order)
	return &view, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Params) (*HistoryPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(page.Limit)
	rows, err := s.repo.ListForUser(ctx, userID, pagination.LimitWithBuffer(limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	rows, next := pagination.Trim(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	result := &HistoryPage{Orders: make([]OrderView, 0, len(rows)), NextCursor: next}
	for i := range rows {
		result.Orders = append(result.Orders, toView(&rows[i]))
	}
	return result, nil
}

// AdvanceStatus applies a fulfillment transition and emits it to the outbox
// in the same transaction.
func (s *service) AdvanceStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*OrderView, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		from := order.Status
		if !from.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
				WithDetails(map[string]string{"from": from.String(), "to": next.String()})
		}
		changedAt := s.now().UTC()
		var paidAt *time.Time
		if next == enums.OrderStatusPaid {
			paidAt = &changedAt
		}
		if err := repo.UpdateStatus(ctx, order.ID, from, next, paidAt); err != nil {
			if errors.Is(err, ErrStatusChanged) {
				return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "order status changed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = next
		order.UpdatedAt = changedAt
		if paidAt != nil {
			order.PaidAt = paidAt
		}
		updated = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			OccurredAt:    changedAt,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				From:        from,
				To:          next,
				ChangedAt:   changedAt,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance order status")
	}
	view := toView(updated)
	return &view, nil
}

func placedEvent(order *models.Order, req Request) outbox.DomainEvent {
	lines := make([]payloads.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, payloads.OrderLine{
			ProductID:    item.ProductID,
			VariantLabel: item.VariantLabel,
			Name:         item.Name,
			UnitPrice:    item.UnitPrice,
			Quantity:     item.Quantity,
			LineTotal:    item.LineTotal(),
		})
	}
	placedAt := order.CreatedAt
	if placedAt.IsZero() {
		placedAt = time.Now().UTC()
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: req.UserID, SessionID: req.SessionID},
		OccurredAt:    placedAt,
		Data: payloads.OrderPlacedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			CustomerEmail: order.CustomerEmail,
			Region:        order.CustomerDetails.Region,
			PaymentMethod: order.PaymentMethod,
			Status:        order.Status,
			Subtotal:      order.Subtotal,
			ShippingCost:  order.ShippingCost,
			TotalAmount:   order.TotalAmount,
			Currency:      order.Currency,
			Lines:         lines,
			PlacedAt:      placedAt,
		},
	}
}

func sameUser(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}
