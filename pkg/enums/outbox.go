package enums

import "fmt"

// OutboxAggregateType is the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
	AggregateUser  OutboxAggregateType = "user"
)

func (a OutboxAggregateType) String() string { return string(a) }

func (a OutboxAggregateType) IsValid() bool {
	switch a {
	case AggregateOrder, AggregateUser:
		return true
	}
	return false
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	if a := OutboxAggregateType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event. It is also the Pub/Sub event_type
// attribute consumers route on.
type OutboxEventType string

const (
	EventOrderPlaced        OutboxEventType = "order_placed"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventUserRegistered     OutboxEventType = "user_registered"
)

func (e OutboxEventType) String() string { return string(e) }

func (e OutboxEventType) IsValid() bool {
	switch e {
	case EventOrderPlaced, EventOrderStatusChanged, EventUserRegistered:
		return true
	}
	return false
}

// Aggregate is the aggregate type every event of this kind is keyed by.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	switch e {
	case EventOrderPlaced, EventOrderStatusChanged:
		return AggregateOrder
	case EventUserRegistered:
		return AggregateUser
	}
	return ""
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
