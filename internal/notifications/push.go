package notifications

import (
	"context"

	"realtime-service/internal/rabbitmq"
)

// PushPayload is what the out-of-band delivery worker receives per device.
type PushPayload struct {
	Token      string `json:"token"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"`
}

// PushSender attempts out-of-band push delivery to one device token.
type PushSender interface {
	Send(ctx context.Context, payload PushPayload) error
}

// AMQPPushSender publishes push payloads to the push exchange; a separate
// delivery worker talks to the vendor push gateways.
type AMQPPushSender struct {
	publisher  rabbitmq.Publisher
	routingKey string
}

func NewAMQPPushSender(publisher rabbitmq.Publisher, routingKey string) *AMQPPushSender {
	return &AMQPPushSender{publisher: publisher, routingKey: routingKey}
}

func (s *AMQPPushSender) Send(ctx context.Context, payload PushPayload) error {
	return s.publisher.Publish(ctx, s.routingKey, payload)
}
