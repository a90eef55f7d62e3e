package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/glowhaus/storefront-backend/pkg/enums"
	"github.com/glowhaus/storefront-backend/pkg/outbox/payloads"
)

var (
	ErrNoDecoder      = errors.New("no decoder registered")
	ErrUnknownVersion = errors.New("unsupported payload version")
	ErrEmptyPayload   = errors.New("payload missing")
)

// Decoder turns the data of a stored envelope into its typed event.
type Decoder func(payload json.RawMessage) (any, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry holds payload decoders per event type and envelope
// version. Producers and consumers share it so a payload shape change is a
// new version rather than a silent breakage.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	decoders map[registryKey]Decoder
	types    map[enums.OutboxEventType]struct{}
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{
		decoders: make(map[registryKey]Decoder),
		types:    make(map[enums.OutboxEventType]struct{}),
	}
}

// DefaultDecoders registers every payload the storefront emits today.
func DefaultDecoders() *DecoderRegistry {
	r := NewDecoderRegistry()
	RegisterJSON[payloads.OrderPlacedEvent](r, enums.EventOrderPlaced, 1)
	RegisterJSON[payloads.OrderStatusChangedEvent](r, enums.EventOrderStatusChanged, 1)
	RegisterJSON[payloads.UserRegisteredEvent](r, enums.EventUserRegistered, 1)
	return r
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder Decoder) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.decoders[registryKey{eventType: eventType, version: version}] = decoder
	r.types[eventType] = struct{}{}
}

// RegisterJSON registers a decoder that unmarshals into a fresh *T.
func RegisterJSON[T any](r *DecoderRegistry, eventType enums.OutboxEventType, version int) {
	r.Register(eventType, version, func(payload json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(payload, out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Handles reports whether any version of eventType is registered.
func (r *DecoderRegistry) Handles(eventType enums.OutboxEventType) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	_, ok := r.types[eventType]
	return ok
}

// Decode runs the decoder for eventType at version. Envelopes written before
// versioning carry 0 and are read as version 1.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	if version <= 0 {
		version = 1
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w for %s", ErrEmptyPayload, eventType)
	}

	r.mtx.RLock()
	decoder, ok := r.decoders[registryKey{eventType: eventType, version: version}]
	_, known := r.types[eventType]
	r.mtx.RUnlock()

	switch {
	case ok:
		out, err := decoder(trimmed)
		if err != nil {
			return nil, fmt.Errorf("decode %s@v%d payload: %w", eventType, version, err)
		}
		return out, nil
	case known:
		return nil, fmt.Errorf("%w: %s@v%d", ErrUnknownVersion, eventType, version)
	default:
		return nil, fmt.Errorf("%w for %s", ErrNoDecoder, eventType)
	}
}
