package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticket-service/internal/archive"
	"ticket-service/internal/broker"
	"ticket-service/internal/models"
	"ticket-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeliveryRequest asks for a ticket document to be emailed
type DeliveryRequest struct {
	To          string
	CC          string
	Subject     string
	Message     string
	Snapshot    []byte
	Orientation string
	Scale       float64
}

// DeliveryService exports tickets and hands them to the dispatcher,
// either inline or through the delivery worker
type DeliveryService struct {
	tickets        TicketSource
	exporter       *ExportService
	dispatcher     *DeliveryDispatcher
	archive        archive.Store
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewDeliveryService creates a delivery service. A nil publisher disables Enqueue.
func NewDeliveryService(
	tickets TicketSource,
	exporter *ExportService,
	dispatcher *DeliveryDispatcher,
	store archive.Store,
	eventPublisher *broker.EventPublisher,
) *DeliveryService {
	return &DeliveryService{
		tickets:        tickets,
		exporter:       exporter,
		dispatcher:     dispatcher,
		archive:        store,
		eventPublisher: eventPublisher,
		logger:         util.ComponentLogger("delivery_service"),
	}
}

// DefaultSubject is used when the request leaves the subject empty
func DefaultSubject(ticket models.Ticket) string {
	return fmt.Sprintf("T&M Ticket #%s - %s", ticket.TicketNumber, ticket.ProjectName)
}

// DefaultMessage is used when the request leaves the message empty
func DefaultMessage(ticket models.Ticket) string {
	return fmt.Sprintf("Please find attached T&M Ticket #%s for %s.\n\nTotal: $%s",
		ticket.TicketNumber, ticket.ProjectName, ticket.Total.StringFixed(2))
}

// Deliver exports the saved ticket and sends it right away
func (s *DeliveryService) Deliver(ctx context.Context, ticketID string, req DeliveryRequest) (models.DeliveryOutcome, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return models.DeliveryOutcome{}, err
	}
	return s.deliver(ctx, uuid.New().String(), *ticket, req)
}

func (s *DeliveryService) deliver(ctx context.Context, deliveryID string, ticket models.Ticket, req DeliveryRequest) (models.DeliveryOutcome, error) {
	ctx, span := util.StartSpan(ctx, "DeliveryService.deliver")
	defer span.End()

	if err := validateRecipient(req.To); err != nil {
		return models.DeliveryOutcome{}, err
	}

	exported, err := s.exporter.ExportTicket(ctx, ticket, ExportRequest{
		Snapshot:    req.Snapshot,
		Orientation: req.Orientation,
		Scale:       req.Scale,
	})
	if err != nil {
		return models.DeliveryOutcome{}, err
	}

	email := models.EmailData{
		To:      req.To,
		CC:      req.CC,
		Subject: req.Subject,
		Message: req.Message,
		PDFData: exported.Document.DataURI(),
	}
	if email.Subject == "" {
		email.Subject = DefaultSubject(ticket)
	}
	if email.Message == "" {
		email.Message = DefaultMessage(ticket)
	}

	outcome, err := s.dispatcher.Send(ctx, email)
	if err != nil {
		return models.DeliveryOutcome{}, err
	}

	s.logger.Info("Delivery finished",
		zap.String("delivery_id", deliveryID),
		zap.String("ticket_id", ticket.ID),
		zap.Bool("success", outcome.Success),
		zap.Bool("used_fallback", outcome.UsedFallback))

	if s.eventPublisher != nil {
		event := &models.DeliveryCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeDeliveryCompleted,
				Timestamp: time.Now(),
			},
			DeliveryID: deliveryID,
			TicketID:   ticket.ID,
			Outcome:    outcome,
		}
		if err := s.eventPublisher.PublishDeliveryCompleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish DeliveryCompleted event", zap.Error(err))
		}
	}

	return outcome, nil
}

func validateRecipient(to string) error {
	if strings.TrimSpace(to) == "" {
		return models.Invalid("to", "recipient email is required")
	}
	return nil
}

// Enqueue stores the snapshot and queues the delivery for the worker.
// The ticket is captured as it is now; later edits do not change the queued send.
func (s *DeliveryService) Enqueue(ctx context.Context, ticketID string, req DeliveryRequest) (string, error) {
	ctx, span := util.StartSpan(ctx, "DeliveryService.Enqueue")
	defer span.End()

	if s.eventPublisher == nil || s.archive == nil {
		return "", fmt.Errorf("asynchronous delivery is not configured")
	}
	if err := validateRecipient(req.To); err != nil {
		return "", err
	}
	if len(req.Snapshot) == 0 {
		return "", models.Invalid("snapshot", "snapshot image is required")
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return "", err
	}

	deliveryID := uuid.New().String()
	key := archive.SnapshotKey(deliveryID)
	if _, err := s.archive.Put(ctx, key, req.Snapshot, "image/png"); err != nil {
		return "", fmt.Errorf("failed to store snapshot: %w", err)
	}

	event := &models.DeliveryRequestedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeDeliveryRequested,
			Timestamp: time.Now(),
		},
		DeliveryID:  deliveryID,
		Ticket:      *ticket,
		To:          req.To,
		CC:          req.CC,
		Subject:     req.Subject,
		Message:     req.Message,
		SnapshotKey: key,
		Orientation: req.Orientation,
		Scale:       req.Scale,
	}
	if err := s.eventPublisher.PublishDeliveryRequested(ctx, event); err != nil {
		if _, delErr := s.archive.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to remove orphaned snapshot", zap.String("key", key), zap.Error(delErr))
		}
		return "", fmt.Errorf("failed to queue delivery: %w", err)
	}

	s.logger.Info("Delivery queued", zap.String("delivery_id", deliveryID), zap.String("ticket_id", ticket.ID))
	return deliveryID, nil
}

// HandleDeliveryRequested runs a queued delivery. Validation failures are logged and
// dropped so a bad request is not retried forever. The parked snapshot is removed
// once the delivery either completes or is rejected.
func (s *DeliveryService) HandleDeliveryRequested(ctx context.Context, event *models.DeliveryRequestedEvent) error {
	snapshot, err := s.archive.Get(ctx, event.SnapshotKey)
	if errors.Is(err, models.ErrNotFound) {
		s.logger.Error("Snapshot for queued delivery is gone", zap.String("delivery_id", event.DeliveryID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load snapshot %s: %w", event.SnapshotKey, err)
	}

	_, err = s.deliver(ctx, event.DeliveryID, event.Ticket, DeliveryRequest{
		To:          event.To,
		CC:          event.CC,
		Subject:     event.Subject,
		Message:     event.Message,
		Snapshot:    snapshot,
		Orientation: event.Orientation,
		Scale:       event.Scale,
	})
	if err != nil {
		s.logger.Error("Queued delivery rejected", zap.String("delivery_id", event.DeliveryID), zap.Error(err))
	}

	if _, err := s.archive.Delete(ctx, event.SnapshotKey); err != nil {
		s.logger.Warn("Failed to remove queued snapshot", zap.String("key", event.SnapshotKey), zap.Error(err))
	}
	return nil
}
