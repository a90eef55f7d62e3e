package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/glowhaus/storefront-backend/pkg/db/models"
)

// ActorRef identifies the shopper behind the event. Guests carry only a
// session id.
type ActorRef struct {
	UserID    *uuid.UUID `json:"userId,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
}

// ActorFor builds the actor for a signed-in user or a guest session, or nil
// when neither is known.
func ActorFor(userID uuid.UUID, sessionID string) *ActorRef {
	switch {
	case userID != uuid.Nil:
		id := userID
		return &ActorRef{UserID: &id, SessionID: sessionID}
	case sessionID != "":
		return &ActorRef{SessionID: sessionID}
	}
	return nil
}

// PayloadEnvelope is what outbox_events.payload stores and what Pub/Sub
// messages carry. EventID equals the outbox row id.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored outbox payload.
func DecodeEnvelope(row models.OutboxEvent) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope %s: %w", row.ID, err)
	}
	if envelope.EventID == "" {
		envelope.EventID = row.ID.String()
	}
	return envelope, nil
}
