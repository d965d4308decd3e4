package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"ticket-service/internal/models"
	"ticket-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventSink accepts serialized domain events. Producer and LocalBus implement it.
type EventSink interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	sink EventSink
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(sink EventSink) *EventPublisher {
	return &EventPublisher{sink: sink}
}

func ticketKey(id string) string {
	return "ticket-" + id
}

// PublishTicketSaved publishes TicketSaved event
func (ep *EventPublisher) PublishTicketSaved(ctx context.Context, event *models.TicketSavedEvent) error {
	return ep.sink.PublishEvent(ctx, ticketKey(event.TicketID), event)
}

// PublishTicketDeleted publishes TicketDeleted event
func (ep *EventPublisher) PublishTicketDeleted(ctx context.Context, event *models.TicketDeletedEvent) error {
	return ep.sink.PublishEvent(ctx, ticketKey(event.TicketID), event)
}

// PublishCatalogReplaced publishes CatalogReplaced event
func (ep *EventPublisher) PublishCatalogReplaced(ctx context.Context, event *models.CatalogReplacedEvent) error {
	return ep.sink.PublishEvent(ctx, "catalog-"+string(event.Catalog), event)
}

// PublishDeliveryRequested publishes DeliveryRequested event
func (ep *EventPublisher) PublishDeliveryRequested(ctx context.Context, event *models.DeliveryRequestedEvent) error {
	return ep.sink.PublishEvent(ctx, ticketKey(event.Ticket.ID), event)
}

// PublishDeliveryCompleted publishes DeliveryCompleted event
func (ep *EventPublisher) PublishDeliveryCompleted(ctx context.Context, event *models.DeliveryCompletedEvent) error {
	return ep.sink.PublishEvent(ctx, ticketKey(event.TicketID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onDeliveryRequested func(context.Context, *models.DeliveryRequestedEvent) error
	logger              *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.ComponentLogger("event_handler")}
}

// OnDeliveryRequested registers a handler for DeliveryRequested events
func (eh *EventHandler) OnDeliveryRequested(handler func(context.Context, *models.DeliveryRequestedEvent) error) {
	eh.onDeliveryRequested = handler
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
	case models.EventTypeDeliveryRequested:
		if eh.onDeliveryRequested != nil {
			var event models.DeliveryRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal DeliveryRequested event: %w", err)
			}
			return eh.onDeliveryRequested(ctx, &event)
		}

	case models.EventTypeTicketSaved, models.EventTypeTicketDeleted,
		models.EventTypeCatalogReplaced, models.EventTypeDeliveryCompleted:
		// published for downstream consumers

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
