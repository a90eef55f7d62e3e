package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/api/responses"
	"github.com/glowhaus/storefront-backend/api/validators"
	"github.com/glowhaus/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/outbox"
	"github.com/glowhaus/storefront-backend/pkg/pagination"
)

// DeadLetters is the operator view over outbox_dlq.
type DeadLetters interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]outbox.DLQEntry, error)
	Replay(ctx context.Context, eventID uuid.UUID, force bool) error
}

type replayRequest struct {
	Force bool `json:"force"`
}

type replayResult struct {
	EventID  uuid.UUID `json:"eventId"`
	Requeued bool      `json:"requeued"`
}

// AdminDLQList returns dead letters newest first, optionally narrowed by
// ?reason=max_attempts|non_retryable.
func AdminDLQList(svc DeadLetters, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter service unavailable"))
			return
		}
		reason, err := validators.QueryOneOf(r, "reason", "",
			enums.OutboxDLQReasonMaxAttempts.String(),
			enums.OutboxDLQReasonNonRetryable.String(),
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.List(r.Context(), outbox.DLQFilter{
			Reason: enums.OutboxDLQErrorReason(reason),
			Limit:  limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// AdminDLQReplay requeues one dead-lettered event for the publisher. An
// empty body is a replay without force.
func AdminDLQReplay(svc DeadLetters, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter service unavailable"))
			return
		}
		eventID, err := validators.URLParamUUID(r, "eventID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload replayRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if err := svc.Replay(r.Context(), eventID, payload.Force); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithFields(r.Context(), map[string]any{
				"event_id": eventID.String(),
				"force":    payload.Force,
			}), "admin.dlq_replayed")
		}
		responses.WriteSuccess(w, replayResult{EventID: eventID, Requeued: true})
	}
}
