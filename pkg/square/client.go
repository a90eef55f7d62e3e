package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/glowhaus/storefront-backend/pkg/config"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	// declines and unusable card data
	paymentMethodError = "PAYMENT_METHOD_ERROR"
)

var hosts = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errLocationRequired    = errors.New("square location id is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
)

type createFunc func(context.Context, *sq.CreatePaymentRequest) (*sq.CreatePaymentResponse, error)

// Client charges checkout payments against one Square location.
type Client struct {
	create     createFunc
	locationID string
	logg       *logger.Logger
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}
	location := strings.TrimSpace(cfg.LocationID)
	if location == "" {
		return nil, errLocationRequired
	}

	sdk := sqclient.NewClient(sqoption.WithBaseURL(hosts[env]), sqoption.WithToken(token))
	logg.Info(logg.WithFields(ctx, map[string]any{"square_env": env, "location_id": location}), "square.ready")
	return &Client{
		create: func(ctx context.Context, req *sq.CreatePaymentRequest) (*sq.CreatePaymentResponse, error) {
			return sdk.Payments.Create(ctx, req)
		},
		locationID: location,
		logg:       logg,
	}, nil
}

// NewIdempotencyKey returns prefix-<uuid>; a blank prefix becomes "gh".
func (c *Client) NewIdempotencyKey(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "gh"
	}
	return prefix + "-" + uuid.NewString()
}

// CreatePayment charges params.SourceID. Anything other than a settled
// payment comes back as CodePayment with the Square status in the details.
func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	if strings.TrimSpace(params.LocationID) == "" {
		params.LocationID = c.locationID
	}
	key := params.IdempotencyKey
	if strings.TrimSpace(key) == "" {
		key = c.NewIdempotencyKey("payment.create")
	}

	ctx = c.withFields(ctx, map[string]any{
		"reference_id": params.ReferenceID,
		"amount":       params.AmountCents,
		"source_id":    params.SourceID,
	})
	c.info(ctx, "square.payment.request")

	resp, err := c.create(ctx, params.toSquareRequest(key))
	if err != nil {
		mapped := classify(err, "create payment")
		if c.logg != nil {
			c.logg.Error(ctx, "square.payment.failed", mapped)
		}
		return nil, mapped
	}

	payment := resp.GetPayment()
	status := deref(payment.GetStatus())
	ctx = c.withFields(ctx, map[string]any{"payment_id": deref(payment.GetID()), "status": status})
	if !paymentSettled(status) {
		c.info(ctx, "square.payment.unsettled")
		return nil, pkgerrors.New(pkgerrors.CodePayment, "payment was not completed").
			WithDetails(map[string]any{"status": status})
	}
	c.info(ctx, "square.payment.completed")
	return payment, nil
}

func paymentSettled(status string) bool {
	s := strings.ToUpper(status)
	return s == "COMPLETED" || s == "APPROVED"
}

var maskedFields = []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone", "source"}

func (c *Client) withFields(ctx context.Context, fields map[string]any) context.Context {
	if c.logg == nil {
		return ctx
	}
	masked := make(map[string]any, len(fields))
	for k, v := range fields {
		masked[k] = redact(k, v)
	}
	return c.logg.WithFields(ctx, masked)
}

func (c *Client) info(ctx context.Context, msg string) {
	if c.logg != nil {
		c.logg.Info(ctx, msg)
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, f := range maskedFields {
		if strings.Contains(lower, f) {
			return "[REDACTED]"
		}
	}
	return value
}

// classify maps an SDK failure onto a domain code. The error body takes
// precedence over the HTTP status; transport failures are retryable.
func classify(err error, op string) error {
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "square "+op+" failed")
	}
	code := codeForStatus(apiErr.StatusCode)
	if c, ok := codeForBody(squareErrors(apiErr)); ok {
		code = c
	}
	return pkgerrors.Wrap(code, err, "square "+op+" failed")
}

func codeForBody(errs []*sq.Error) (pkgerrors.Code, bool) {
	for _, e := range errs {
		switch {
		case e == nil:
		case e.Code == sq.ErrorCodeIdempotencyKeyReused:
			return pkgerrors.CodeIdempotency, true
		case e.Category == sq.ErrorCategoryAuthenticationError:
			return pkgerrors.CodeUnauthorized, true
		case string(e.Category) == paymentMethodError:
			return pkgerrors.CodePayment, true
		}
	}
	return "", false
}

// squareErrors decodes the {"errors":[...]} body the SDK leaves wrapped
// inside the APIError.
func squareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(inner.Error()), &body) != nil {
		return nil
	}
	return body.Errors
}

var statusCodes = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
	http.StatusPaymentRequired:     pkgerrors.CodePayment,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
}

func codeForStatus(status int) pkgerrors.Code {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func normalizeEnv(raw string) (string, error) {
	env := strings.ToLower(strings.TrimSpace(raw))
	if env == "" {
		return sandboxEnv, nil
	}
	if _, ok := hosts[env]; !ok {
		return "", errInvalidSquareEnv
	}
	return env, nil
}
