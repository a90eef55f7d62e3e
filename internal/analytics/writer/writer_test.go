package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/glowhaus/storefront-backend/internal/analytics/types"
	pkgbigquery "github.com/glowhaus/storefront-backend/pkg/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNewWriterValidation(t *testing.T) {
	if _, err := New(nil, Config{OrderSalesTable: "order_sales"}); err == nil {
		t.Fatal("expected error when client missing")
	}
	if _, err := New(&pkgbigquery.Client{}, Config{OrderSalesTable: " "}); err == nil {
		t.Fatal("expected error when order sales table missing")
	}
}

func TestEncodeJSON(t *testing.T) {
	raw := map[string]any{"order_number": "ORD-00001"}
	nj, err := EncodeJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error encoding json: %v", err)
	}
	if !nj.Valid {
		t.Fatal("expected json to be marked valid")
	}

	nj, err = EncodeJSON(nil)
	if err != nil {
		t.Fatalf("unexpected error for nil json: %v", err)
	}
	if nj.Valid {
		t.Fatal("expected nil json to be invalid")
	}

	rawMessage := json.RawMessage(`{"order_number":"ORD-00002"}`)
	nj, err = EncodeJSON(rawMessage)
	if err != nil {
		t.Fatalf("unexpected error encoding raw json: %v", err)
	}
	if nj.JSONVal != string(rawMessage) {
		t.Fatalf("expected raw json passed through, got %s", nj.JSONVal)
	}
}

func TestInsertOrderSalesUsesStructSaversWithInsertIDs(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	rows := []types.OrderSalesRow{
		{EventID: "evt-1", LineIndex: 0, ProductID: "lip-1"},
		{EventID: "evt-1", LineIndex: 1, ProductID: "blush-2"},
	}

	if err := writer.InsertOrderSales(context.Background(), rows); err != nil {
		t.Fatalf("unexpected error writing rows: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected a single insert, got %d", len(fake.calls))
	}
	call := fake.calls[0]
	if call.table != "order_sales" || len(call.rows) != 2 {
		t.Fatalf("unexpected insert %s/%d", call.table, len(call.rows))
	}
	saver, ok := call.rows[1].(*cbigquery.StructSaver)
	if !ok {
		t.Fatalf("expected struct saver, got %T", call.rows[1])
	}
	if saver.InsertID != "evt-1:1" {
		t.Fatalf("unexpected insert id %q", saver.InsertID)
	}
}

func TestInsertOrderSalesSkipsEmpty(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	if err := writer.InsertOrderSales(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no insert, got %d", len(fake.calls))
	}
}

func TestWriterRetriesOnTransientError(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		nil,
	}

	if err := writer.InsertOrderSales(context.Background(), []types.OrderSalesRow{{EventID: "1"}}); err != nil {
		t.Fatalf("unexpected error writing row: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected two insert attempts, got %d", len(fake.calls))
	}
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	fake.responses = []error{unavailable, unavailable, unavailable, unavailable}

	err := writer.InsertOrderSales(context.Background(), []types.OrderSalesRow{{EventID: "1"}})
	if !errors.Is(err, unavailable) {
		t.Fatalf("expected last transient error, got %v", err)
	}
	if len(fake.calls) != 3 {
		t.Fatalf("expected default of three attempts, got %d", len(fake.calls))
	}
}

func TestWriterStopsOnPermanentError(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	err := writer.InsertOrderSales(context.Background(), []types.OrderSalesRow{{EventID: "1"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(fake.calls))
	}
}

func TestIsRetryableBigQueryError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest}, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), true},
		{"grpc invalid", status.Error(codes.InvalidArgument, "bad"), false},
		{"plain", errors.New("boom"), false},
		{"wrapped grpc", fmt.Errorf("insert: %w", status.Error(codes.ResourceExhausted, "quota")), true},
		{"rows all transient", &cbigquery.PutMultiError{{InsertID: "a", Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusServiceUnavailable}}}}, true},
		{"one bad row", &cbigquery.PutMultiError{
			{InsertID: "a", Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusServiceUnavailable}}},
			{InsertID: "b", Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusBadRequest}}},
		}, false},
		{"empty multi", &cbigquery.MultiError{}, false},
	}
	for _, tc := range cases {
		if got := retryable(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
	}
}

type insertCall struct {
	table string
	rows  []any
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
	index     int
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	f.calls = append(f.calls, insertCall{table: table, rows: rows})
	var err error
	if f.index < len(f.responses) {
		err = f.responses[f.index]
	}
	f.index++
	return err
}

func newWriterWithFakeInserter(t *testing.T) (*SalesWriter, *fakeInserter) {
	t.Helper()
	writer, err := New(&pkgbigquery.Client{}, Config{
		OrderSalesTable: "order_sales",
		RetryPolicy: RetryPolicy{
			InitialBackoff: time.Millisecond,
			MaximumBackoff: time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("construct writer: %v", err)
	}

	fake := &fakeInserter{}
	writer.client = fake
	return writer, fake
}
