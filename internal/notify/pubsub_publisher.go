package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
)

// PubSubPublisher publishes email jobs to a Pub/Sub topic consumed by the mail worker.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPublisher constructs a Pub/Sub backed email job publisher.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher: topic is required")
	}
	return &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// Send enqueues an email job message on the configured topic.
func (p *PubSubPublisher) Send(ctx context.Context, message Message) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub publisher: not initialised")
	}
	if strings.TrimSpace(message.To) == "" {
		return errors.New("pubsub publisher: recipient is required")
	}

	data, err := p.marshal(message)
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}

	attrs := map[string]string{"kind": "email"}
	if subject := strings.TrimSpace(message.Subject); subject != "" {
		attrs["subject"] = subject
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish email job: %w", err)
	}
	return nil
}
