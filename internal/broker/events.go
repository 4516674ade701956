package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"asset-service/internal/models"
	"asset-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishInvoiceCreated publishes InvoiceCreated event
func (ep *EventPublisher) PublishInvoiceCreated(ctx context.Context, event *models.InvoiceCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, "invoice-"+event.InvoiceID.String(), event)
}

// PublishMovementRecorded publishes MovementRecorded event, keyed by asset
func (ep *EventPublisher) PublishMovementRecorded(ctx context.Context, event *models.MovementRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, "asset-"+event.AssetID.String(), event)
}

// PublishAssetDeleted publishes AssetDeleted event
func (ep *EventPublisher) PublishAssetDeleted(ctx context.Context, event *models.AssetDeletedEvent) error {
	return ep.producer.PublishEvent(ctx, "asset-"+event.AssetID.String(), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onInvoiceCreated func(context.Context, *models.InvoiceCreatedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnInvoiceCreated registers a handler for InvoiceCreated events
func (eh *EventHandler) OnInvoiceCreated(handler func(context.Context, *models.InvoiceCreatedEvent) error) {
	eh.onInvoiceCreated = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeInvoiceCreated:
		if eh.onInvoiceCreated != nil {
			var event models.InvoiceCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal InvoiceCreated event: %w", err)
			}
			return eh.onInvoiceCreated(ctx, &event)
		}

	case models.EventTypeMovementRecorded, models.EventTypeAssetDeleted:
		// consumed by downstream services only

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
