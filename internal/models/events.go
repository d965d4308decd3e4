package models

import "time"

// Event types
const (
	EventTypeTicketSaved       = "TICKET_SAVED"
	EventTypeTicketDeleted     = "TICKET_DELETED"
	EventTypeDeliveryRequested = "DELIVERY_REQUESTED"
	EventTypeDeliveryCompleted = "DELIVERY_COMPLETED"
	EventTypeCatalogReplaced   = "CATALOG_REPLACED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketSavedEvent published after a ticket upsert commits
type TicketSavedEvent struct {
	BaseEvent
	TicketID     string `json:"ticket_id"`
	TicketNumber string `json:"ticket_number"`
	ProjectName  string `json:"project_name"`
	Total        string `json:"total"`
	Created      bool   `json:"created"`
}

// TicketDeletedEvent published after a ticket is removed
type TicketDeletedEvent struct {
	BaseEvent
	TicketID string `json:"ticket_id"`
}

// CatalogReplacedEvent published after a catalog write commits
type CatalogReplacedEvent struct {
	BaseEvent
	Catalog   CatalogKind `json:"catalog"`
	ItemCount int         `json:"item_count"`
}

// DeliveryRequestedEvent carries a send-time snapshot of a queued delivery
type DeliveryRequestedEvent struct {
	BaseEvent
	DeliveryID  string  `json:"delivery_id"`
	Ticket      Ticket  `json:"ticket"`
	To          string  `json:"to"`
	CC          string  `json:"cc,omitempty"`
	Subject     string  `json:"subject,omitempty"`
	Message     string  `json:"message,omitempty"`
	SnapshotKey string  `json:"snapshot_key"`
	Orientation string  `json:"orientation,omitempty"`
	Scale       float64 `json:"scale,omitempty"`
}

// DeliveryCompletedEvent published once a delivery attempt ran to completion
type DeliveryCompletedEvent struct {
	BaseEvent
	DeliveryID string          `json:"delivery_id"`
	TicketID   string          `json:"ticket_id"`
	Outcome    DeliveryOutcome `json:"outcome"`
}
