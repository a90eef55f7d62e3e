package controllers

import (
	"context"
	"net/http"

	"github.com/glowhaus/storefront-backend/api/middleware"
	"github.com/glowhaus/storefront-backend/api/responses"
	"github.com/glowhaus/storefront-backend/api/validators"
	"github.com/glowhaus/storefront-backend/internal/assistant"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/logger"
)

const maxTurnText = 500

// Dialogue advances the shopping assistant by one turn.
type Dialogue interface {
	Step(ctx context.Context, turn assistant.Turn) (*assistant.Reply, error)
}

// AssistantTurn runs one step of the shopping assistant. The client echoes
// the state, step and skinType of the previous reply.
func AssistantTurn(engine Dialogue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assistant unavailable"))
			return
		}
		sid, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var turn assistant.Turn
		if err := validators.DecodeJSONBody(r, &turn); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		turn.SessionID = sid
		turn.UserID = middleware.UserUUIDFromContext(r.Context())
		turn.Text = validators.SanitizeString(turn.Text, maxTurnText)
		turn.Value = validators.SanitizeString(turn.Value, maxTurnText)

		reply, err := engine.Step(r.Context(), turn)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reply)
	}
}
