package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
)

// URLParam returns the trimmed chi path parameter or a validation error when
// it is empty.
func URLParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, name+" is required").
			WithDetails(map[string]string{name: "is required"})
	}
	return value, nil
}

// URLParamUUID parses a uuid path parameter.
func URLParamUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw, err := URLParam(r, name)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).
			WithDetails(map[string]string{name: "must be a uuid"})
	}
	return id, nil
}
