package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists every valid status value.
var TicketStatuses = []TicketStatus{
	TicketStatusPending,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// IsValidStatus reports whether s is a known ticket status.
func IsValidStatus(s TicketStatus) bool {
	for _, candidate := range TicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Reopenable reports whether a ticket in status s may be reopened.
func (s TicketStatus) Reopenable() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// Category enumerates the routing labels for support requests.
type Category string

const (
	CategoryBilling   Category = "billing"
	CategoryTechnical Category = "technical"
	CategoryDelivery  Category = "delivery"
	CategoryGeneral   Category = "general"
)

// Categories lists the fixed label set in routing order.
var Categories = []Category{
	CategoryBilling,
	CategoryTechnical,
	CategoryDelivery,
	CategoryGeneral,
}

// IsValidCategory reports whether c is one of the fixed labels.
func IsValidCategory(c Category) bool {
	for _, candidate := range Categories {
		if candidate == c {
			return true
		}
	}
	return false
}

// Ticket is the aggregate for support requests.
//
// AssignedTeam is always derived from Category; ExpectedResolvedAt is
// recomputed whenever Category changes.
type Ticket struct {
	ID                 int64
	OwnerID            string
	Customer           string
	Message            string
	Category           Category
	AssignedTeam       string
	Status             TicketStatus
	Confidence         *float64
	AttachmentPath     *string
	ExpectedResolvedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
