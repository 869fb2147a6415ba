package events

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketRecategorized EventType = "ticket_recategorized"
	EventTicketReopened      EventType = "ticket_reopened"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	OwnerID   string      `json:"owner_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Customer     string          `json:"customer"`
	Message      string          `json:"message"`
	Category     domain.Category `json:"category"`
	AssignedTeam string          `json:"assigned_team"`
	ETA          *time.Time      `json:"eta,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	Customer  string              `json:"customer"`
	Message   string              `json:"message"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Automatic bool                `json:"automatic"`
}

// TicketRecategorizedPayload payload.
type TicketRecategorizedPayload struct {
	OldCategory domain.Category `json:"old_category"`
	NewCategory domain.Category `json:"new_category"`
	OldTeam     string          `json:"old_team"`
	NewTeam     string          `json:"new_team"`
	NewETA      *time.Time      `json:"new_eta,omitempty"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
}
