package main

import (
	"context"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// publisher and publishResult are the slice of the Pub/Sub API the
// dispatcher needs; *gcppubsub.Publisher satisfies them through gcpPublisher.
type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (serverID string, err error)
}

// topicFunc returns the publisher for a topic, or nil when the topic is not
// configured.
type topicFunc func(topic string) publisher

func gcpTopics(client pubSubClient) topicFunc {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return gcpPublisher{p}
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}
