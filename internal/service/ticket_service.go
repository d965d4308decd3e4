package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ticket-service/internal/broker"
	"ticket-service/internal/models"
	"ticket-service/internal/store"
	"ticket-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EditSession is one ticket being composed: header, markup selection and ledger
type EditSession struct {
	ID        string
	TicketID  string
	CreatedAt time.Time

	header  models.Header
	enabled []string
	ledger  *Ledger
}

// SessionView is the computed state of an edit session
type SessionView struct {
	ID             string                             `json:"id"`
	TicketID       string                             `json:"ticketId,omitempty"`
	Header         models.Header                      `json:"header"`
	LineItems      models.LineItems                   `json:"lineItems"`
	CategoryTotals map[models.Category]decimal.Decimal `json:"categoryTotals"`
	EnabledMarkups []string                           `json:"enabledMarkups"`
	Totals         models.Totals                      `json:"totals"`
}

// TicketService owns edit sessions and the saved ticket lifecycle
type TicketService struct {
	tickets        *store.TicketRepository
	materials      *store.CatalogStore
	equipment      *store.CatalogStore
	markups        *MarkupEngine
	rates          LaborRates
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger

	mu       sync.Mutex
	sessions map[string]*EditSession
	newID    func() string
	now      func() time.Time
}

// NewTicketService creates a ticket service and subscribes it to catalog changes.
// A nil publisher disables events.
func NewTicketService(
	tickets *store.TicketRepository,
	materials *store.CatalogStore,
	equipment *store.CatalogStore,
	markups *MarkupEngine,
	rates LaborRates,
	eventPublisher *broker.EventPublisher,
) *TicketService {
	s := &TicketService{
		tickets:        tickets,
		materials:      materials,
		equipment:      equipment,
		markups:        markups,
		rates:          rates,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		sessions:       make(map[string]*EditSession),
		newID:          uuid.NewString,
		now:            time.Now,
	}
	materials.Subscribe(s.onCatalogChange)
	equipment.Subscribe(s.onCatalogChange)
	return s
}

// LaborRates returns the grade table
func (s *TicketService) LaborRates() LaborRates {
	return s.rates
}

// Markups returns the configured markup rules
func (s *TicketService) Markups() []models.MarkupRule {
	return s.markups.Rules()
}

func (s *TicketService) onCatalogChange(kind models.CatalogKind, items []models.CatalogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.ledger.OnCatalogChange(kind, items)
	}
}

func (s *TicketService) session(id string) (*EditSession, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	return sess, nil
}

// Begin opens a session. With a ticket id the saved ticket is loaded for editing.
func (s *TicketService) Begin(ctx context.Context, ticketID string) (SessionView, error) {
	ctx, span := util.StartSpan(ctx, "TicketService.Begin")
	defer span.End()

	sess := &EditSession{
		ID:        s.newID(),
		CreatedAt: s.now(),
		enabled:   s.markups.DefaultEnabled(),
		ledger:    NewLedger(s.rates, s.materials, s.equipment),
	}

	if ticketID != "" {
		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return SessionView{}, err
		}
		sess.TicketID = ticket.ID
		sess.header = ticket.Header
		sess.enabled = s.knownMarkups(ticket.EnabledMarkups)
		sess.ledger.Load(ticket.LineItems)
		sess.ledger.OnCatalogChange(models.CatalogMaterials, s.materials.List(ctx))
		sess.ledger.OnCatalogChange(models.CatalogEquipment, s.equipment.List(ctx))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	util.SessionsActive.Inc()

	s.logger.Info("Edit session opened", zap.String("session_id", sess.ID), zap.String("ticket_id", ticketID))
	return s.view(sess)
}

// knownMarkups drops names no longer configured, so old tickets stay editable
func (s *TicketService) knownMarkups(names []string) []string {
	known := make(map[string]bool)
	for _, r := range s.markups.Rules() {
		known[r.Name] = true
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if known[n] {
			out = append(out, n)
		} else {
			s.logger.Warn("Dropping unknown markup from saved ticket", zap.String("markup", n))
		}
	}
	return out
}

// UpdateHeader replaces the header. Required fields are checked at preview and save.
func (s *TicketService) UpdateHeader(ctx context.Context, id string, header models.Header) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(id)
	if err != nil {
		return SessionView{}, err
	}
	sess.header = header
	return s.view(sess)
}

// SetMarkups selects which markup rules apply
func (s *TicketService) SetMarkups(ctx context.Context, id string, names []string) (SessionView, error) {
	if _, err := s.markups.ComputeTotals(decimal.Zero, names); err != nil {
		return SessionView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(id)
	if err != nil {
		return SessionView{}, err
	}
	seen := make(map[string]bool, len(names))
	enabled := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			enabled = append(enabled, n)
		}
	}
	sess.enabled = enabled
	return s.view(sess)
}

// Apply runs a ledger command against the session
func (s *TicketService) Apply(ctx context.Context, id string, cmd LedgerCommand) (models.LineItem, SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(id)
	if err != nil {
		return models.LineItem{}, SessionView{}, err
	}
	entry, err := sess.ledger.Apply(ctx, cmd)
	if err != nil {
		return models.LineItem{}, SessionView{}, err
	}
	view, err := s.view(sess)
	return entry, view, err
}

// View returns the session's computed state
func (s *TicketService) View(ctx context.Context, id string) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(id)
	if err != nil {
		return SessionView{}, err
	}
	return s.view(sess)
}

func (s *TicketService) view(sess *EditSession) (SessionView, error) {
	totals, err := s.markups.ComputeTotals(sess.ledger.Subtotal(), sess.enabled)
	if err != nil {
		return SessionView{}, err
	}
	categoryTotals := make(map[models.Category]decimal.Decimal, len(models.Categories))
	for _, c := range models.Categories {
		categoryTotals[c] = sess.ledger.CategoryTotal(c)
	}
	return SessionView{
		ID:             sess.ID,
		TicketID:       sess.TicketID,
		Header:         sess.header,
		LineItems:      sess.ledger.Snapshot(),
		CategoryTotals: categoryTotals,
		EnabledMarkups: append([]string{}, sess.enabled...),
		Totals:         totals,
	}, nil
}

// Preview validates the header and builds the ticket the session would save
func (s *TicketService) Preview(ctx context.Context, id string) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(id)
	if err != nil {
		return models.Ticket{}, err
	}
	return s.build(sess)
}

func (s *TicketService) build(sess *EditSession) (models.Ticket, error) {
	if err := sess.header.Validate(); err != nil {
		return models.Ticket{}, err
	}
	totals, err := s.markups.ComputeTotals(sess.ledger.Subtotal(), sess.enabled)
	if err != nil {
		return models.Ticket{}, err
	}
	return models.Ticket{
		ID:             sess.TicketID,
		Header:         sess.header,
		LineItems:      sess.ledger.Snapshot(),
		EnabledMarkups: append([]string{}, sess.enabled...),
		Subtotal:       totals.Subtotal,
		MarkupAmounts:  totals.PerRule,
		Total:          totals.Total,
	}, nil
}

// Save persists the session's ticket and closes the session.
// On failure the session stays open so the user can retry.
func (s *TicketService) Save(ctx context.Context, id string) (models.Ticket, error) {
	ctx, span := util.StartSpan(ctx, "TicketService.Save")
	defer span.End()

	saved, created, err := s.commit(ctx, id)
	if err != nil {
		return models.Ticket{}, err
	}

	// Published outside s.mu so a slow broker never stalls other sessions
	if s.eventPublisher != nil {
		event := &models.TicketSavedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeTicketSaved,
				Timestamp: time.Now(),
			},
			TicketID:     saved.ID,
			TicketNumber: saved.TicketNumber,
			ProjectName:  saved.ProjectName,
			Total:        saved.Total.StringFixed(2),
			Created:      created,
		}
		if err := s.eventPublisher.PublishTicketSaved(ctx, event); err != nil {
			s.logger.Error("Failed to publish TicketSaved event", zap.Error(err))
		}
	}

	return saved, nil
}

// commit persists the session's ticket and ends the session
func (s *TicketService) commit(ctx context.Context, id string) (models.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(id)
	if err != nil {
		return models.Ticket{}, false, err
	}
	ticket, err := s.build(sess)
	if err != nil {
		return models.Ticket{}, false, err
	}

	created := ticket.ID == ""
	saved, err := s.tickets.Upsert(ctx, ticket)
	if err != nil {
		util.TicketSaveFailuresTotal.Inc()
		return models.Ticket{}, false, err
	}

	delete(s.sessions, id)
	util.SessionsActive.Dec()
	kind := "updated"
	if created {
		kind = "created"
	}
	util.TicketsSavedTotal.WithLabelValues(kind).Inc()
	s.logger.Info("Ticket saved", zap.String("ticket_id", saved.ID), zap.String("total", saved.Total.StringFixed(2)))
	return saved, created, nil
}

// Discard closes a session without saving
func (s *TicketService) Discard(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.session(id); err != nil {
		return err
	}
	delete(s.sessions, id)
	util.SessionsActive.Dec()
	return nil
}

// ListTickets returns saved tickets
func (s *TicketService) ListTickets(ctx context.Context) []models.Ticket {
	return s.tickets.List(ctx)
}

// GetTicket returns a saved ticket
func (s *TicketService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	return s.tickets.GetByID(ctx, id)
}

// DeleteTicket removes a saved ticket. Deleting a missing ticket is a no-op.
func (s *TicketService) DeleteTicket(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "TicketService.DeleteTicket")
	defer span.End()

	removed, err := s.tickets.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if !removed {
		return nil
	}

	util.TicketsDeletedTotal.Inc()
	if s.eventPublisher != nil {
		event := &models.TicketDeletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeTicketDeleted,
				Timestamp: time.Now(),
			},
			TicketID: id,
		}
		if err := s.eventPublisher.PublishTicketDeleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish TicketDeleted event", zap.Error(err))
		}
	}
	return nil
}
