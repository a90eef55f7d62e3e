package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/glowhaus/storefront-backend/pkg/db"
	"github.com/glowhaus/storefront-backend/pkg/db/models"
	"github.com/glowhaus/storefront-backend/pkg/enums"
	"github.com/glowhaus/storefront-backend/pkg/pagination"
	"github.com/glowhaus/storefront-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	schema := []string{`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_seq INTEGER NOT NULL UNIQUE,
  order_number TEXT NOT NULL UNIQUE,
  idempotency_key TEXT NOT NULL UNIQUE,
  user_id TEXT,
  session_id TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  customer_details TEXT NOT NULL,
  items TEXT NOT NULL,
  subtotal TEXT NOT NULL,
  shipping_cost TEXT NOT NULL,
  total_amount TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'PHP',
  payment_method TEXT NOT NULL,
  payment_provider TEXT,
  payment_reference TEXT,
  status TEXT NOT NULL,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func sampleOrder(key, sessionID string, userID *uuid.UUID) *models.Order {
	items := types.LineItems{{ProductID: "l1", Name: "Velvet Lipstick", UnitPrice: decimal.NewFromInt(399), Quantity: 2}}
	return &models.Order{
		IdempotencyKey: key,
		UserID:         userID,
		SessionID:      sessionID,
		CustomerEmail:  "ana@example.com",
		CustomerDetails: types.DeliveryAddress{
			FirstName: "Ana", LastName: "Cruz", Region: "NCR", Province: "Metro Manila",
			City: "Makati", Barangay: "Poblacion", StreetAddress: "1 Ayala Ave",
			PostalCode: "1210", Phone: "09171234567",
		},
		Items:         items,
		Subtotal:      items.Subtotal(),
		ShippingCost:  decimal.NewFromInt(100),
		TotalAmount:   items.Subtotal().Add(decimal.NewFromInt(100)),
		Currency:      "PHP",
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
		Status:        enums.OrderStatusPending,
	}
}

func TestRepositoryCreateIssuesSequentialNumbers(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := sampleOrder("key-1", "sess-1", nil)
	require.NoError(t, repo.Create(ctx, first))
	second := sampleOrder("key-2", "sess-2", nil)
	require.NoError(t, repo.Create(ctx, second))

	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, "ORD-00001", first.OrderNumber)
	assert.Equal(t, "ORD-00002", second.OrderNumber)

	loaded, err := repo.FindByNumber(ctx, "ORD-00002")
	require.NoError(t, err)
	assert.Equal(t, second.ID, loaded.ID)
	assert.Equal(t, "Makati", loaded.CustomerDetails.City)
	require.Len(t, loaded.Items, 1)
	assert.True(t, loaded.TotalAmount.Equal(decimal.NewFromInt(898)))
}

func TestRepositoryRejectsDuplicateIdempotencyKey(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleOrder("dup", "sess", nil)))
	err := repo.Create(ctx, sampleOrder("dup", "sess", nil))
	require.Error(t, err)
	assert.True(t, dbpkg.IsUniqueViolation(err, ""))

	found, err := repo.FindByIdempotencyKey(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "ORD-00001", found.OrderNumber)
}

func TestRepositoryUserHistory(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	latest, err := repo.LatestForUser(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	older := sampleOrder("a", "sess", &userID)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, older))
	newer := sampleOrder("b", "sess", &userID)
	newer.CustomerDetails.City = "Taguig"
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, sampleOrder("c", "other", nil)))

	latest, err = repo.LatestForUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "Taguig", latest.CustomerDetails.City)

	history, err := repo.ListForUser(ctx, userID, 0, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, newer.ID, history[0].ID)

	rest, err := repo.ListForUser(ctx, userID, 10, &pagination.Cursor{CreatedAt: history[0].CreatedAt, ID: history[0].ID})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, older.ID, rest[0].ID)
}

func TestRepositoryUpdateStatusGuardsCurrentStatus(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := sampleOrder("k", "sess", nil)
	require.NoError(t, repo.Create(ctx, order))

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusProcessing, nil))
	err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusProcessing, nil)
	assert.ErrorIs(t, err, ErrStatusChanged)

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, loaded.Status)
}

func TestNormalizeOrderRef(t *testing.T) {
	cases := map[string]string{
		"ord 123":    "ORD-00123",
		"#ORD-00123": "ORD-00123",
		"00123":      "ORD-00123",
		"ORD-7":      "ORD-00007",
		" ord:42 ":   "ORD-00042",
		"ORD-123456": "ORD-123456",
	}
	for in, want := range cases {
		got, ok := NormalizeOrderRef(in)
		if !ok || got != want {
			t.Fatalf("NormalizeOrderRef(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	for _, bad := range []string{"", "ORD-", "0", "lipstick", "ORD-12a"} {
		if got, ok := NormalizeOrderRef(bad); ok {
			t.Fatalf("NormalizeOrderRef(%q) = %q, want rejection", bad, got)
		}
	}
}
