package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/glowhaus/storefront-backend/pkg/db/models"
	"github.com/glowhaus/storefront-backend/pkg/enums"
	"github.com/glowhaus/storefront-backend/pkg/metrics"
	"github.com/glowhaus/storefront-backend/pkg/outbox/registry"
)

type verdict int

const (
	verdictPublished verdict = iota
	verdictRetry
	verdictDeadLetter
)

func (v verdict) outcome() string {
	switch v {
	case verdictPublished:
		return metrics.OutcomePublished
	case verdictRetry:
		return metrics.OutcomeRetried
	default:
		return metrics.OutcomeDeadLettered
	}
}

// delivery tracks one outbox row through a batch: resolved, sent, awaited,
// then recorded.
type delivery struct {
	event   models.OutboxEvent
	topic   string
	result  publishResult
	verdict verdict
	reason  enums.OutboxDLQErrorReason
	err     error
}

func (d *delivery) deadLetter(reason enums.OutboxDLQErrorReason, err error) {
	d.verdict, d.reason, d.err = verdictDeadLetter, reason, err
}

// processBatch locks up to batchSize pending rows, publishes them all, waits
// for the acks, and records every outcome in the same transaction. Dead
// order events are copied to the DLQ topic only after the commit.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	started := time.Now()
	var deliveries []*delivery
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch pending: %w", err)
		}
		deliveries = s.send(ctx, events)
		s.await(ctx, deliveries)
		for _, d := range deliveries {
			if err := s.record(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(deliveries) == 0 {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.ObserveBatch(workerName, time.Since(started))
	}
	for _, d := range deliveries {
		if s.metrics != nil {
			s.metrics.IncOutcome(workerName, d.verdict.outcome())
		}
		if d.verdict == verdictDeadLetter {
			s.forwardDeadLetter(ctx, d)
		}
	}
	return len(deliveries), nil
}

// send resolves each row and hands it to Pub/Sub without waiting, so one
// batch shares a single round of acks.
func (s *Service) send(ctx context.Context, events []models.OutboxEvent) []*delivery {
	out := make([]*delivery, 0, len(events))
	for _, event := range events {
		d := &delivery{event: event}
		out = append(out, d)

		resolved, err := s.registry.Resolve(event)
		if err != nil {
			d.deadLetter(enums.OutboxDLQReasonNonRetryable, err)
			continue
		}
		d.topic = resolved.Descriptor.Topic
		pub := s.topics(d.topic)
		if pub == nil {
			d.deadLetter(enums.OutboxDLQReasonNonRetryable, fmt.Errorf("no publisher for topic %q", d.topic))
			continue
		}
		d.result = pub.Publish(ctx, &gcppubsub.Message{
			Data:       event.Payload,
			Attributes: messageAttributes(event),
		})
		if d.result == nil {
			d.deadLetter(enums.OutboxDLQReasonNonRetryable, fmt.Errorf("topic %q returned no publish result", d.topic))
		}
	}
	return out
}

func (s *Service) await(ctx context.Context, deliveries []*delivery) {
	waitCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	for _, d := range deliveries {
		if d.result == nil {
			continue
		}
		_, err := d.result.Get(waitCtx)
		s.classify(d, err)
	}
}

func (s *Service) classify(d *delivery, err error) {
	switch {
	case err == nil:
		d.verdict = verdictPublished
	case registry.IsNonRetryable(err):
		d.deadLetter(enums.OutboxDLQReasonNonRetryable, err)
	case d.event.AttemptCount+1 >= s.maxAttempts:
		d.deadLetter(enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("gave up after %d attempts: %w", d.event.AttemptCount+1, err))
	default:
		d.verdict, d.err = verdictRetry, err
	}
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, d *delivery) error {
	event := d.event
	logCtx := s.logg.WithFields(ctx, deliveryFields(d))
	switch d.verdict {
	case verdictPublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(logCtx, "outbox.published")
	case verdictRetry:
		s.logg.Warn(logCtx, "outbox.publish_retry")
		if err := s.repo.MarkFailedTx(tx, event.ID, d.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, err)
		}
	case verdictDeadLetter:
		s.logg.Warn(logCtx, "outbox.dead_lettered")
		message := d.err.Error()
		if err := s.dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   d.reason,
			ErrorMessage:  &message,
			AttemptCount:  event.AttemptCount,
			FailedAt:      time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("insert dlq %s: %w", event.ID, err)
		}
		if err := s.repo.MarkTerminalTx(tx, event.ID, d.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
	}
	return nil
}

// forwardDeadLetter alerts on dead order events. The outbox_dlq row is the
// record; a failed copy is only logged.
func (s *Service) forwardDeadLetter(ctx context.Context, d *delivery) {
	if s.dlqTopic == "" || d.event.AggregateType != enums.AggregateOrder {
		return
	}
	logCtx := s.logg.WithFields(ctx, deliveryFields(d))
	pub := s.topics(s.dlqTopic)
	if pub == nil {
		s.logg.Warn(logCtx, "outbox.dlq_topic_missing")
		return
	}
	attrs := messageAttributes(d.event)
	attrs["error_reason"] = d.reason.String()

	waitCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	result := pub.Publish(waitCtx, &gcppubsub.Message{Data: d.event.Payload, Attributes: attrs})
	if result == nil {
		s.logg.Error(logCtx, "outbox.dlq_forward_failed", errors.New("no publish result"))
		return
	}
	if _, err := result.Get(waitCtx); err != nil {
		s.logg.Error(logCtx, "outbox.dlq_forward_failed", err)
	}
}

// messageAttributes are what subscribers filter and route on. event_id is
// the outbox row id, which is also the envelope's eventId.
func messageAttributes(event models.OutboxEvent) map[string]string {
	return map[string]string{
		"event_id":       event.ID.String(),
		"event_type":     event.EventType.String(),
		"aggregate_type": event.AggregateType.String(),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func deliveryFields(d *delivery) map[string]any {
	fields := map[string]any{
		"event_id":       d.event.ID.String(),
		"event_type":     d.event.EventType,
		"aggregate_type": d.event.AggregateType,
		"aggregate_id":   d.event.AggregateID.String(),
		"attempt_count":  d.event.AttemptCount,
	}
	if d.topic != "" {
		fields["topic"] = d.topic
	}
	if d.err != nil {
		fields["error"] = d.err.Error()
	}
	if d.verdict == verdictDeadLetter {
		fields["error_reason"] = d.reason
	}
	return fields
}
