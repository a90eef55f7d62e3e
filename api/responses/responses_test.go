package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/logger"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"order_number": "ORD-00042"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"order_number":"ORD-00042"}}`, w.Body.String())
}

func TestWriteErrorPublicShape(t *testing.T) {
	cases := []struct {
		err       error
		status    int
		message   string
		retryable bool
	}{
		{pkgerrors.New(pkgerrors.CodeValidation, "bad input"), http.StatusBadRequest, "bad input", false},
		{pkgerrors.New(pkgerrors.CodePayment, "card declined"), http.StatusPaymentRequired, "card declined", false},
		{pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty"), http.StatusUnprocessableEntity, "cart is empty", false},
		{pkgerrors.New(pkgerrors.CodeIdempotency, "key reused"), http.StatusConflict, "key reused", false},
		{pkgerrors.New(pkgerrors.CodeDependency, "order store unavailable"), http.StatusServiceUnavailable, "", true},
		{errors.New("boom"), http.StatusInternalServerError, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), nil, w, tc.err)

			assert.Equal(t, tc.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tc.retryable, body.Retryable)
			if tc.message != "" {
				assert.Equal(t, tc.message, body.Message)
			} else {
				assert.NotEqual(t, tc.err.Error(), body.Message, "server-side text stays private")
			}
			assert.Equal(t, tc.retryable, w.Header().Get("Retry-After") != "")
		})
	}
}

func TestWriteErrorDetails(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").WithDetails(map[string]string{"phone": "required"})
	WriteError(context.Background(), logger.Nop(), w, err)
	assert.Equal(t, map[string]any{"phone": "required"}, decodeError(t, w).Details)

	w = httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("pq: timeout"), "db").
		WithDetails(map[string]string{"query": "select"}))
	assert.Nil(t, decodeError(t, w).Details)
}

func TestWriteErrorKeepsHandlerRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("Retry-After", "30")
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "slow down"))
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestWriteErrorLogsByStatus(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})

	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeNotFound, "no such order"))
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"message":"request.rejected"`)

	buf.Reset()
	WriteError(context.Background(), logg, httptest.NewRecorder(), fmt.Errorf("insert order: %w", errors.New("disk full")))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "disk full")
}

func TestWriteErrorNilBecomesInternal(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(pkgerrors.CodeInternal), decodeError(t, w).Code)
}

func TestWriteSuccessEncodingFailureYields500(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]any{"bad": make(chan int)})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(pkgerrors.CodeInternal), decodeError(t, w).Code)
}
