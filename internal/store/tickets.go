package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ticket-service/internal/models"
	"ticket-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TicketRepository stores tickets as one JSON array, upserting by id
type TicketRepository struct {
	records RecordStore
	logger  *zap.Logger
	mu      sync.Mutex
	now     func() time.Time
	newID   func() string
}

// NewTicketRepository creates a repository over the tickets namespace
func NewTicketRepository(records RecordStore) *TicketRepository {
	return &TicketRepository{
		records: records,
		logger:  util.ComponentLogger("tickets"),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// List returns every ticket in storage order. Read failures are logged and yield an empty list.
func (r *TicketRepository) List(ctx context.Context) []models.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets, err := loadArray[models.Ticket](ctx, r.records, NamespaceTickets, r.logger)
	if err != nil {
		r.logger.Error("Failed to read tickets", zap.Error(err))
		return []models.Ticket{}
	}
	return tickets
}

// GetByID retrieves a ticket by id
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	for _, t := range r.List(ctx) {
		if t.ID == id {
			ticket := t
			return &ticket, nil
		}
	}
	return nil, fmt.Errorf("ticket %s: %w", id, models.ErrNotFound)
}

// Upsert inserts or replaces a ticket by id.
// A ticket without id gets a fresh id and createdAt. updatedAt is always set. An existing
// ticket is replaced at its position and keeps its stored createdAt.
func (r *TicketRepository) Upsert(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets, err := loadArray[models.Ticket](ctx, r.records, NamespaceTickets, r.logger)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("failed to save ticket: %w", err)
	}

	now := r.now()
	if ticket.ID == "" {
		ticket.ID = r.newID()
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now

	replaced := false
	for i := range tickets {
		if tickets[i].ID == ticket.ID {
			ticket.CreatedAt = tickets[i].CreatedAt
			tickets[i] = ticket
			replaced = true
			break
		}
	}
	if !replaced {
		if ticket.CreatedAt.IsZero() {
			ticket.CreatedAt = now
		}
		tickets = append(tickets, ticket)
	}

	if err := saveArray(ctx, r.records, NamespaceTickets, tickets); err != nil {
		r.logger.Error("Failed to save ticket", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return models.Ticket{}, fmt.Errorf("failed to save ticket: %w", err)
	}

	return ticket, nil
}

// Delete removes the ticket with id. It reports whether a ticket was removed; a missing id is a no-op.
func (r *TicketRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets, err := loadArray[models.Ticket](ctx, r.records, NamespaceTickets, r.logger)
	if err != nil {
		return false, err
	}

	kept := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(tickets) {
		return false, nil
	}

	if err := saveArray(ctx, r.records, NamespaceTickets, kept); err != nil {
		r.logger.Error("Failed to delete ticket", zap.String("ticket_id", id), zap.Error(err))
		return false, err
	}
	return true, nil
}
