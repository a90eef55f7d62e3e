package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/cenkalti/backoff/v5"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/glowhaus/storefront-backend/internal/analytics/types"
	pkgbigquery "github.com/glowhaus/storefront-backend/pkg/bigquery"
)

// Config names the destination table and how hard to retry it.
type Config struct {
	OrderSalesTable string
	RetryPolicy     RetryPolicy
}

// RetryPolicy bounds streaming insert retries. Zero fields take defaults.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 250 * time.Millisecond
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = 2 * time.Second
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// SalesWriter streams order_sales rows. All lines of one order go out in a
// single insert, so a message is acked only once every line is stored.
type SalesWriter struct {
	client tableInserter
	table  string
	policy RetryPolicy
}

func New(client *pkgbigquery.Client, cfg Config) (*SalesWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.OrderSalesTable)
	if table == "" {
		return nil, errors.New("order sales table is required")
	}
	return &SalesWriter{client: client, table: table, policy: cfg.RetryPolicy.withDefaults()}, nil
}

// InsertOrderSales writes rows keyed by their per-line insert ids.
func (w *SalesWriter) InsertOrderSales(ctx context.Context, rows []types.OrderSalesRow) error {
	if len(rows) == 0 {
		return nil
	}
	savers := make([]any, 0, len(rows))
	for i := range rows {
		savers = append(savers, &cbigquery.StructSaver{Struct: &rows[i], InsertID: rows[i].InsertID()})
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.policy.InitialBackoff
	policy.MaxInterval = w.policy.MaximumBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := w.client.InsertRows(ctx, w.table, savers)
		if err != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(w.policy.MaxAttempts)))
	if err != nil {
		return fmt.Errorf("insert %s rows: %w", w.table, err)
	}
	return nil
}

// retryable reports whether every underlying failure is transient. A batch
// with one bad row is not retried since the same row would fail again.
func retryable(err error) bool {
	leaves := leafErrors(err)
	if len(leaves) == 0 {
		return false
	}
	for _, leaf := range leaves {
		if !transient(leaf) {
			return false
		}
	}
	return true
}

// leafErrors flattens the BigQuery multi-error shapes into their parts.
// Put returns them by value; older clients returned pointers.
func leafErrors(err error) []error {
	var out []error
	switch e := err.(type) {
	case nil:
	case *cbigquery.MultiError:
		if e != nil {
			out = leafErrors(*e)
		}
	case cbigquery.MultiError:
		for _, inner := range e {
			out = append(out, leafErrors(inner)...)
		}
	case *cbigquery.PutMultiError:
		if e != nil {
			out = leafErrors(*e)
		}
	case cbigquery.PutMultiError:
		for _, row := range e {
			out = append(out, leafErrors(row.Errors)...)
		}
	case *cbigquery.RowInsertionError:
		if e != nil {
			out = leafErrors(e.Errors)
		}
	default:
		out = append(out, err)
	}
	return out
}

func transient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted,
			codes.Aborted, codes.Internal:
			return true
		}
	}
	return false
}

// EncodeJSON prepares a value for a JSON column. Raw JSON passes through
// untouched; empty input becomes NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return v, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
