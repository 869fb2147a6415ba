package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Message        string  `json:"message"`
	AttachmentPath *string `json:"attachment_path,omitempty"`
}

// RecategorizeRequest payload for moving a ticket to another category.
type RecategorizeRequest struct {
	Category string `json:"category"`
}

// UpdateStatusRequest payload for an explicit status change.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// ClassifyRequest payload for a dry-run classification.
type ClassifyRequest struct {
	Message string `json:"message"`
}

// ClassifyResponse reports where a message would be routed without
// creating a ticket.
type ClassifyResponse struct {
	Category     string    `json:"category"`
	Confidence   float64   `json:"confidence"`
	AssignedTeam string    `json:"assigned_team"`
	ETA          time.Time `json:"expected_resolved_at"`
	Warning      string    `json:"warning,omitempty"`
}

// TicketResponse is the full ticket view returned to its owner.
type TicketResponse struct {
	ID                 int64               `json:"id"`
	Customer           string              `json:"customer"`
	Message            string              `json:"message"`
	Category           domain.Category     `json:"category"`
	AssignedTeam       string              `json:"assigned_team"`
	Status             domain.TicketStatus `json:"status"`
	Confidence         *float64            `json:"confidence,omitempty"`
	AttachmentPath     *string             `json:"attachment_path,omitempty"`
	ExpectedResolvedAt *time.Time          `json:"expected_resolved_at,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// CreateTicketResponse reports the routing outcome alongside the ticket.
type CreateTicketResponse struct {
	Ticket  TicketResponse `json:"ticket"`
	Warning string         `json:"warning,omitempty"`
	Message string         `json:"message"`
}

// FromTicket maps the domain model onto the response shape.
func FromTicket(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                 ticket.ID,
		Customer:           ticket.Customer,
		Message:            ticket.Message,
		Category:           ticket.Category,
		AssignedTeam:       ticket.AssignedTeam,
		Status:             ticket.Status,
		Confidence:         ticket.Confidence,
		AttachmentPath:     ticket.AttachmentPath,
		ExpectedResolvedAt: ticket.ExpectedResolvedAt,
		CreatedAt:          ticket.CreatedAt,
		UpdatedAt:          ticket.UpdatedAt,
	}
}
