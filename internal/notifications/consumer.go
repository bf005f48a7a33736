package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
	"github.com/mwangikariuki/shopkit-backend/pkg/logger"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox/idempotency"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox/payloads"
)

const notificationConsumer = "notification-dispatch"

// Consumer turns published domain events into outbound messages. One
// consumer serves one subscription; the worker runs an instance per
// topic it listens on.
type Consumer struct {
	dispatcher   *Dispatcher
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a notification consumer.
func NewConsumer(dispatcher *Dispatcher, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		dispatcher:   dispatcher,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	handler, ok := c.handlerFor(enums.OutboxEventType(eventType))
	if !ok {
		c.logg.Info(logCtx, "skipping unhandled event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, notificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := handler(ctx, logCtx, envelope.Data); err != nil {
		// Send failures are already recorded in the delivery log;
		// redelivering the event would double-send the messages that
		// did go out, so the event stays acked.
		c.logg.Error(logCtx, "notification dispatch incomplete", err)
	}
	return processResult{ack: true}
}

type eventHandler func(ctx context.Context, logCtx context.Context, data json.RawMessage) error

func (c *Consumer) handlerFor(eventType enums.OutboxEventType) (eventHandler, bool) {
	switch eventType {
	case enums.EventOrderCreated:
		return func(ctx, logCtx context.Context, data json.RawMessage) error {
			var payload payloads.OrderCreatedEvent
			if err := json.Unmarshal(data, &payload); err != nil {
				c.logg.Error(logCtx, "failed to parse payload", err)
				return nil
			}
			return c.dispatcher.OrderCreated(logCtx, payload)
		}, true
	case enums.EventOrderStatusChanged:
		return func(ctx, logCtx context.Context, data json.RawMessage) error {
			var payload payloads.OrderStatusChangedEvent
			if err := json.Unmarshal(data, &payload); err != nil {
				c.logg.Error(logCtx, "failed to parse payload", err)
				return nil
			}
			return c.dispatcher.OrderStatusChanged(logCtx, payload)
		}, true
	case enums.EventUserRegistered:
		return func(ctx, logCtx context.Context, data json.RawMessage) error {
			var payload payloads.UserRegisteredEvent
			if err := json.Unmarshal(data, &payload); err != nil {
				c.logg.Error(logCtx, "failed to parse payload", err)
				return nil
			}
			return c.dispatcher.UserRegistered(logCtx, payload)
		}, true
	}
	return nil, false
}
