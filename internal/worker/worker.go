package worker

import (
	"context"
	"errors"

	"ticket-service/internal/broker"
	"ticket-service/internal/models"
	"ticket-service/internal/util"

	"go.uber.org/zap"
)

// MessageSource is a stream of ticket events. broker.Consumer and broker.LocalBus implement it.
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// DeliveryHandler runs a queued delivery
type DeliveryHandler func(ctx context.Context, event *models.DeliveryRequestedEvent) error

// DeliveryWorker sends queued ticket deliveries in the background
type DeliveryWorker struct {
	source       MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewDeliveryWorker creates a worker routing DeliveryRequested events to deliver
func NewDeliveryWorker(source MessageSource, deliver DeliveryHandler) *DeliveryWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnDeliveryRequested(deliver)

	return &DeliveryWorker{
		source:       source,
		eventHandler: eventHandler,
		logger:       util.ComponentLogger("delivery_worker"),
	}
}

// Start consumes until ctx is cancelled or the source is closed
func (w *DeliveryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting delivery worker")
	err := w.source.StartConsuming(ctx, w.eventHandler.HandleMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop closes the message source
func (w *DeliveryWorker) Stop() error {
	w.logger.Info("Stopping delivery worker")
	return w.source.Close()
}
