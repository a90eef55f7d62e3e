package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowhaus/storefront-backend/pkg/db/models"
	"github.com/glowhaus/storefront-backend/pkg/enums"
	pkgerrors "github.com/glowhaus/storefront-backend/pkg/errors"
	"github.com/glowhaus/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DLQEntry is the admin view of a dead-lettered event.
type DLQEntry struct {
	EventID       uuid.UUID                  `json:"eventId"`
	EventType     enums.OutboxEventType      `json:"eventType"`
	AggregateType enums.OutboxAggregateType  `json:"aggregateType"`
	AggregateID   uuid.UUID                  `json:"aggregateId"`
	Reason        enums.OutboxDLQErrorReason `json:"reason"`
	Error         string                     `json:"error,omitempty"`
	AttemptCount  int                        `json:"attemptCount"`
	FailedAt      time.Time                  `json:"failedAt"`
	Payload       json.RawMessage            `json:"payload"`
}

// DLQService lets operators inspect dead-lettered events and push them back
// onto the outbox.
type DLQService struct {
	tx     txRunner
	events *Repository
	dlq    *DLQRepository
	logg   *logger.Logger
}

func NewDLQService(tx txRunner, events *Repository, dlq *DLQRepository, logg *logger.Logger) *DLQService {
	return &DLQService{tx: tx, events: events, dlq: dlq, logg: logg}
}

func (s *DLQService) List(ctx context.Context, filter DLQFilter) ([]DLQEntry, error) {
	rows, err := s.dlq.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters")
	}
	out := make([]DLQEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDLQEntry(row))
	}
	return out, nil
}

// Replay removes the dead letter and resets the outbox row in one
// transaction. Non-retryable failures need force, since replaying them
// unchanged fails the same way.
func (s *DLQService) Replay(ctx context.Context, eventID uuid.UUID, force bool) error {
	var entry *models.OutboxDLQ
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		dlq := s.dlq.WithTx(tx)
		found, err := dlq.FindByEventID(ctx, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dead letter")
		}
		if found == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
		}
		if !found.ErrorReason.Replayable() && !force {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "event failed permanently; replay with force after fixing the cause").
				WithDetails(map[string]string{"reason": found.ErrorReason.String()})
		}
		requeued, err := s.events.WithTx(tx).Requeue(ctx, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requeue event")
		}
		if !requeued {
			return pkgerrors.New(pkgerrors.CodeConflict, "outbox event is missing or already published")
		}
		if err := dlq.DeleteByEventID(ctx, eventID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete dead letter")
		}
		entry = found
		return nil
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":   eventID.String(),
			"event_type": entry.EventType,
			"reason":     entry.ErrorReason,
			"forced":     force,
		}), "outbox.dlq_replayed")
	}
	return nil
}

func toDLQEntry(row models.OutboxDLQ) DLQEntry {
	entry := DLQEntry{
		EventID:       row.EventID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Reason:        row.ErrorReason,
		AttemptCount:  row.AttemptCount,
		FailedAt:      row.FailedAt,
		Payload:       row.Payload,
	}
	if row.ErrorMessage != nil {
		entry.Error = *row.ErrorMessage
	}
	return entry
}
