package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/routing"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// CategoryRouter is the routing surface the executor depends on.
type CategoryRouter interface {
	Classify(ctx context.Context, text string) routing.Classification
	TeamFor(category domain.Category) string
	ETAFor(category domain.Category) time.Duration
}

// AgentService executes ticket actions on behalf of the conversational
// agent. Every operation requires the caller-asserted owner id to match
// the ticket's owner, and commits its mutation as one atomic unit.
type AgentService struct {
	tickets    repository.TicketRepository
	router     CategoryRouter
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// AgentDependencies bundles requirements for the agent service.
type AgentDependencies struct {
	TicketRepo repository.TicketRepository
	Router     CategoryRouter
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewAgentService constructs the service.
func NewAgentService(deps AgentDependencies) *AgentService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &AgentService{
		tickets:    deps.TicketRepo,
		router:     deps.Router,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        now,
	}
}

// CreateResult reports a created ticket.
type CreateResult struct {
	TicketID     int64
	Category     domain.Category
	AssignedTeam string
	Status       domain.TicketStatus
	ETA          *time.Time
	Warning      string
	Message      string
}

// RecategorizeResult reports the before/after snapshot of a category change.
type RecategorizeResult struct {
	TicketID    int64
	OldCategory domain.Category
	NewCategory domain.Category
	OldTeam     string
	NewTeam     string
	OldStatus   domain.TicketStatus
	NewStatus   domain.TicketStatus
	OldETA      *time.Time
	NewETA      *time.Time
	Message     string
}

// ReopenResult reports the before/after snapshot of a reopen.
type ReopenResult struct {
	TicketID  int64
	OldStatus domain.TicketStatus
	NewStatus domain.TicketStatus
	Message   string
}

// Create classifies the message, persists the ticket and publishes a
// creation event for best-effort notification.
func (s *AgentService) Create(ctx context.Context, ownerID, customerName, message string) (*CreateResult, error) {
	return s.CreateWithAttachment(ctx, ownerID, customerName, message, nil)
}

// CreateWithAttachment is Create with an optional stored attachment
// reference carried through to the ticket record.
func (s *AgentService) CreateWithAttachment(ctx context.Context, ownerID, customerName, message string, attachmentPath *string) (*CreateResult, error) {
	classification := s.router.Classify(ctx, message)
	eta := s.now().Add(s.router.ETAFor(classification.Category))
	confidence := classification.Confidence

	ticket := &domain.Ticket{
		OwnerID:            ownerID,
		Customer:           strings.TrimSpace(customerName),
		Message:            strings.TrimSpace(message),
		Category:           classification.Category,
		AssignedTeam:       s.router.TeamFor(classification.Category),
		Status:             domain.TicketStatusPending,
		Confidence:         &confidence,
		AttachmentPath:     attachmentPath,
		ExpectedResolvedAt: &eta,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		OwnerID:  ticket.OwnerID,
		Payload: events.TicketCreatedPayload{
			Customer:     ticket.Customer,
			Message:      ticket.Message,
			Category:     ticket.Category,
			AssignedTeam: ticket.AssignedTeam,
			ETA:          ticket.ExpectedResolvedAt,
		},
	})

	return &CreateResult{
		TicketID:     ticket.ID,
		Category:     ticket.Category,
		AssignedTeam: ticket.AssignedTeam,
		Status:       ticket.Status,
		ETA:          ticket.ExpectedResolvedAt,
		Warning:      classification.Warning,
		Message: fmt.Sprintf("Ticket #%d created successfully! Category: %s, Assigned to: %s, Status: %s.",
			ticket.ID, ticket.Category, ticket.AssignedTeam, ticket.Status),
	}, nil
}

// Recategorize atomically updates category, team, resets status to
// pending and recomputes the ETA, returning the full before/after diff.
func (s *AgentService) Recategorize(ctx context.Context, ownerID string, ticketID int64, newCategory domain.Category) (*RecategorizeResult, error) {
	newCategory = domain.Category(strings.ToLower(string(newCategory)))
	if !domain.IsValidCategory(newCategory) {
		return nil, apperrors.NewInvalidCategory(
			fmt.Sprintf("invalid category %q, must be one of: %s", newCategory, categoryList()),
			map[string]any{"category": string(newCategory)})
	}

	var result *RecategorizeResult
	err := s.tickets.WithTx(ctx, func(repo repository.TicketRepository) error {
		ticket, err := repo.GetByIDAndOwner(ctx, ticketID, ownerID)
		if err != nil {
			return mapTicketErr(err, ticketID)
		}

		oldCategory := ticket.Category
		oldTeam := ticket.AssignedTeam
		oldStatus := ticket.Status
		oldETA := ticket.ExpectedResolvedAt

		eta := s.now().Add(s.router.ETAFor(newCategory))
		ticket.Category = newCategory
		ticket.AssignedTeam = s.router.TeamFor(newCategory)
		ticket.Status = domain.TicketStatusPending
		ticket.ExpectedResolvedAt = &eta

		if err := repo.Update(ctx, ticket); err != nil {
			return err
		}

		result = &RecategorizeResult{
			TicketID:    ticket.ID,
			OldCategory: oldCategory,
			NewCategory: ticket.Category,
			OldTeam:     oldTeam,
			NewTeam:     ticket.AssignedTeam,
			OldStatus:   oldStatus,
			NewStatus:   ticket.Status,
			OldETA:      oldETA,
			NewETA:      ticket.ExpectedResolvedAt,
			Message: fmt.Sprintf("Ticket #%d category updated from %s to %s. Team reassigned to %s. Status reset to pending. ETA recalculated.",
				ticket.ID, oldCategory, ticket.Category, ticket.AssignedTeam),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketRecategorized,
		TicketID: result.TicketID,
		OwnerID:  ownerID,
		Payload: events.TicketRecategorizedPayload{
			OldCategory: result.OldCategory,
			NewCategory: result.NewCategory,
			OldTeam:     result.OldTeam,
			NewTeam:     result.NewTeam,
			NewETA:      result.NewETA,
		},
	})
	return result, nil
}

// Reopen moves a resolved or closed ticket back to pending. The ETA is
// intentionally left untouched; only recategorization recomputes it.
func (s *AgentService) Reopen(ctx context.Context, ownerID string, ticketID int64) (*ReopenResult, error) {
	var result *ReopenResult
	err := s.tickets.WithTx(ctx, func(repo repository.TicketRepository) error {
		ticket, err := repo.GetByIDAndOwner(ctx, ticketID, ownerID)
		if err != nil {
			return mapTicketErr(err, ticketID)
		}

		if !ticket.Status.Reopenable() {
			return apperrors.NewInvalidState(
				fmt.Sprintf("ticket is currently %s; only resolved or closed tickets can be reopened", ticket.Status),
				map[string]any{"ticket_id": ticketID, "status": string(ticket.Status)})
		}

		oldStatus := ticket.Status
		ticket.Status = domain.TicketStatusPending
		if err := repo.Update(ctx, ticket); err != nil {
			return err
		}

		result = &ReopenResult{
			TicketID:  ticket.ID,
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
			Message:   fmt.Sprintf("Ticket #%d has been reopened and is now pending review.", ticket.ID),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReopened,
		TicketID: result.TicketID,
		OwnerID:  ownerID,
		Payload:  events.TicketReopenedPayload{OldStatus: result.OldStatus},
	})
	return result, nil
}

// Preview classifies a message without persisting anything. Used by the
// dry-run classification endpoint.
func (s *AgentService) Preview(ctx context.Context, message string) (routing.Classification, string, time.Time) {
	classification := s.router.Classify(ctx, message)
	team := s.router.TeamFor(classification.Category)
	eta := s.now().Add(s.router.ETAFor(classification.Category))
	return classification, team, eta
}

// UpdateStatus moves a ticket to an explicit status. Moving a resolved
// or closed ticket back to pending follows the reopen rules and emits a
// reopened event; any other change emits a status-changed event.
func (s *AgentService) UpdateStatus(ctx context.Context, ownerID string, ticketID int64, newStatus domain.TicketStatus) (*ReopenResult, error) {
	newStatus = domain.TicketStatus(strings.ToLower(string(newStatus)))
	if !domain.IsValidStatus(newStatus) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("invalid status %q", newStatus),
			map[string]any{"status": string(newStatus)})
	}

	var result *ReopenResult
	var reopened bool
	err := s.tickets.WithTx(ctx, func(repo repository.TicketRepository) error {
		ticket, err := repo.GetByIDAndOwner(ctx, ticketID, ownerID)
		if err != nil {
			return mapTicketErr(err, ticketID)
		}

		if ticket.Status == newStatus {
			return apperrors.NewInvalidState(
				fmt.Sprintf("ticket is already %s", newStatus),
				map[string]any{"ticket_id": ticketID, "status": string(newStatus)})
		}
		if newStatus == domain.TicketStatusPending && !ticket.Status.Reopenable() {
			return apperrors.NewInvalidState(
				fmt.Sprintf("ticket is currently %s; only resolved or closed tickets can move back to pending", ticket.Status),
				map[string]any{"ticket_id": ticketID, "status": string(ticket.Status)})
		}
		reopened = newStatus == domain.TicketStatusPending

		oldStatus := ticket.Status
		ticket.Status = newStatus
		if err := repo.Update(ctx, ticket); err != nil {
			return err
		}

		result = &ReopenResult{
			TicketID:  ticket.ID,
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
			Message:   fmt.Sprintf("Ticket #%d status updated from %s to %s.", ticket.ID, oldStatus, ticket.Status),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if reopened {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketReopened,
			TicketID: result.TicketID,
			OwnerID:  ownerID,
			Payload:  events.TicketReopenedPayload{OldStatus: result.OldStatus},
		})
	} else {
		ticket, err := s.tickets.GetByIDAndOwner(ctx, result.TicketID, ownerID)
		if err == nil {
			s.publishEvent(ctx, events.Event{
				Type:     events.EventTicketStatusChanged,
				TicketID: result.TicketID,
				OwnerID:  ownerID,
				Payload: events.TicketStatusChangedPayload{
					Customer:  ticket.Customer,
					Message:   ticket.Message,
					OldStatus: result.OldStatus,
					NewStatus: result.NewStatus,
					Automatic: false,
				},
			})
		}
	}
	return result, nil
}

// Get returns a single ticket the owner can see.
func (s *AgentService) Get(ctx context.Context, ownerID string, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByIDAndOwner(ctx, ticketID, ownerID)
	if err != nil {
		return nil, mapTicketErr(err, ticketID)
	}
	return ticket, nil
}

// List returns the owner's tickets, optionally filtered by status.
func (s *AgentService) List(ctx context.Context, ownerID string, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	if len(statuses) == 0 {
		statuses = []domain.TicketStatus{
			domain.TicketStatusPending,
			domain.TicketStatusInProgress,
			domain.TicketStatusResolved,
			domain.TicketStatusClosed,
		}
	}
	return s.tickets.ListByOwnerAndStatus(ctx, ownerID, statuses)
}

func (s *AgentService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func mapTicketErr(err error, ticketID int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return err
}

func categoryList() string {
	names := make([]string, 0, len(domain.Categories))
	for _, category := range domain.Categories {
		names = append(names, string(category))
	}
	return strings.Join(names, ", ")
}
