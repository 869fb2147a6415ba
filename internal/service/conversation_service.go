package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// Progress stage identifiers, emitted strictly in pipeline order.
const (
	StageCheckingDB         = "checking_db"
	StageSavingMessage      = "saving_message"
	StageFetchingTickets    = "fetching_tickets"
	StageFindingIntent      = "finding_intent"
	StageExecutingAction    = "executing_action"
	StageGeneratingResponse = "generating_response"
	StageSavingResponse     = "saving_response"
)

// ProgressEvent is one entry of the ordered server-to-client stream.
// Type is "status" for stage progress and "complete" or "error" for the
// single terminal event of a turn.
type ProgressEvent struct {
	Type            string         `json:"type"`
	Status          string         `json:"status,omitempty"`
	Message         string         `json:"message,omitempty"`
	Response        string         `json:"response,omitempty"`
	Error           string         `json:"error,omitempty"`
	SessionID       int64          `json:"session_id,omitempty"`
	MessageID       int64          `json:"message_id,omitempty"`
	ActionPerformed bool           `json:"action_performed,omitempty"`
	ActionDetails   map[string]any `json:"action_details,omitempty"`
}

// EmitFunc receives progress events as the turn advances. A nil emitter
// is allowed; the turn then runs silently.
type EmitFunc func(ProgressEvent)

// IntentDetector resolves the purpose of a user turn.
type IntentDetector interface {
	Detect(ctx context.Context, message, ticketContext string, tickets []domain.Ticket) domain.Intent
}

// ActionExecutor performs ticket mutations on the agent's behalf.
type ActionExecutor interface {
	Create(ctx context.Context, ownerID, customerName, message string) (*CreateResult, error)
	Recategorize(ctx context.Context, ownerID string, ticketID int64, newCategory domain.Category) (*RecategorizeResult, error)
	Reopen(ctx context.Context, ownerID string, ticketID int64) (*ReopenResult, error)
}

// ReplyGenerator produces the conversational reply for a turn.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, userQuery, ticketContext string, history []domain.ChatMessage, actionResult string) (string, error)
}

// ConversationService sequences one user turn: persist the message,
// detect intent, optionally execute an action, generate a reply and
// persist it, emitting ordered progress events along the way.
type ConversationService struct {
	chats     repository.ChatRepository
	tickets   repository.TicketRepository
	detector  IntentDetector
	executor  ActionExecutor
	responder ReplyGenerator
	logger    *zap.Logger
	cfg       config.ChatConfig
}

// ConversationDependencies bundles requirements for the service.
type ConversationDependencies struct {
	ChatRepo   repository.ChatRepository
	TicketRepo repository.TicketRepository
	Detector   IntentDetector
	Executor   ActionExecutor
	Responder  ReplyGenerator
	Logger     *zap.Logger
}

// NewConversationService constructs the service.
func NewConversationService(cfg config.ChatConfig, deps ConversationDependencies) *ConversationService {
	if cfg.ActionConfidenceThreshold <= 0 {
		cfg.ActionConfidenceThreshold = 0.7
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	return &ConversationService{
		chats:     deps.ChatRepo,
		tickets:   deps.TicketRepo,
		detector:  deps.Detector,
		executor:  deps.Executor,
		responder: deps.Responder,
		logger:    deps.Logger,
		cfg:       cfg,
	}
}

// TurnInput describes one user message.
type TurnInput struct {
	OwnerID      string
	CustomerName string
	SessionID    *int64
	Message      string
}

// TurnResult is the terminal outcome of a successful turn.
type TurnResult struct {
	SessionID       int64
	MessageID       int64
	Response        string
	ActionPerformed bool
	ActionDetails   map[string]any
}

// activeStatuses are the statuses shown in the ticket context for a turn.
var activeStatuses = []domain.TicketStatus{
	domain.TicketStatusPending,
	domain.TicketStatusInProgress,
	domain.TicketStatusResolved,
}

// Turn executes one conversation turn. Exactly one terminal event is
// emitted. Writes committed before a failing step are intentionally
// kept; only the in-flight step aborts.
func (s *ConversationService) Turn(ctx context.Context, input TurnInput, emit EmitFunc) (*TurnResult, error) {
	result, err := s.run(ctx, input, emit)
	if err != nil {
		s.logger.Error("conversation turn failed", zap.Error(err))
		s.emit(emit, ProgressEvent{Type: "error", Error: turnErrorMessage(err)})
		return nil, err
	}
	s.emit(emit, ProgressEvent{
		Type:            "complete",
		Response:        result.Response,
		SessionID:       result.SessionID,
		MessageID:       result.MessageID,
		ActionPerformed: result.ActionPerformed,
		ActionDetails:   result.ActionDetails,
	})
	return result, nil
}

func (s *ConversationService) run(ctx context.Context, input TurnInput, emit EmitFunc) (*TurnResult, error) {
	s.emit(emit, statusEvent(StageCheckingDB, "Looking up your conversation"))
	session, err := s.resolveSession(ctx, input)
	if err != nil {
		return nil, err
	}

	s.emit(emit, statusEvent(StageSavingMessage, "Saving your message"))
	userMessage := &domain.ChatMessage{
		SessionID: session.ID,
		Role:      domain.ChatRoleUser,
		Content:   input.Message,
	}
	if err := s.chats.AppendMessage(ctx, userMessage); err != nil {
		return nil, err
	}
	if err := s.chats.TouchSession(ctx, session.ID); err != nil {
		return nil, err
	}

	s.emit(emit, statusEvent(StageFetchingTickets, "Fetching your tickets"))
	tickets, err := s.tickets.ListByOwnerAndStatus(ctx, input.OwnerID, activeStatuses)
	if err != nil {
		return nil, err
	}
	ticketContext := FormatTicketContext(tickets)

	s.emit(emit, statusEvent(StageFindingIntent, "Understanding your request"))
	intent := s.detector.Detect(ctx, input.Message, ticketContext, tickets)

	actionResult := ""
	actionPerformed := false
	var actionDetails map[string]any
	if intent.Kind != domain.IntentChat && intent.Confidence > s.cfg.ActionConfidenceThreshold {
		s.emit(emit, statusEvent(StageExecutingAction, "Working on your ticket"))
		actionResult, actionDetails, actionPerformed = s.executeAction(ctx, input, intent)
		if actionPerformed {
			// the action changed ticket state; rebuild the context so the
			// reply reflects what the store now says
			tickets, err = s.tickets.ListByOwnerAndStatus(ctx, input.OwnerID, activeStatuses)
			if err != nil {
				return nil, err
			}
			ticketContext = FormatTicketContext(tickets)
		}
	}

	s.emit(emit, statusEvent(StageGeneratingResponse, "Writing a reply"))
	history, err := s.chats.ListMessages(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if len(history) > s.cfg.HistoryWindow {
		history = history[len(history)-s.cfg.HistoryWindow:]
	}
	reply, err := s.responder.GenerateReply(ctx, input.Message, ticketContext, history, actionResult)
	if err != nil {
		return nil, err
	}

	s.emit(emit, statusEvent(StageSavingResponse, "Saving the reply"))
	assistantMessage := &domain.ChatMessage{
		SessionID: session.ID,
		Role:      domain.ChatRoleAssistant,
		Content:   reply,
	}
	if err := s.chats.AppendMessage(ctx, assistantMessage); err != nil {
		return nil, err
	}
	if err := s.chats.TouchSession(ctx, session.ID); err != nil {
		return nil, err
	}

	return &TurnResult{
		SessionID:       session.ID,
		MessageID:       assistantMessage.ID,
		Response:        reply,
		ActionPerformed: actionPerformed,
		ActionDetails:   actionDetails,
	}, nil
}

// executeAction dispatches the intent to the executor. Action failures
// never fail the turn: they are rendered as polite text the reply
// generator weaves into its answer.
func (s *ConversationService) executeAction(ctx context.Context, input TurnInput, intent domain.Intent) (string, map[string]any, bool) {
	switch intent.Kind {
	case domain.IntentCreateTicket:
		message := intent.Message
		if strings.TrimSpace(message) == "" {
			message = input.Message
		}
		result, err := s.executor.Create(ctx, input.OwnerID, input.CustomerName, message)
		if err != nil {
			return s.actionFailure(err), nil, false
		}
		details := map[string]any{
			"ticket_id": result.TicketID,
			"category":  string(result.Category),
			"team":      result.AssignedTeam,
			"status":    string(result.Status),
		}
		if result.ETA != nil {
			details["eta"] = result.ETA.Format(time.RFC3339)
		}
		return result.Message, details, true

	case domain.IntentUpdateCategory:
		result, err := s.executor.Recategorize(ctx, input.OwnerID, intent.TicketID, intent.Category)
		if err != nil {
			return s.actionFailure(err), nil, false
		}
		details := map[string]any{
			"ticket_id":    result.TicketID,
			"old_category": string(result.OldCategory),
			"new_category": string(result.NewCategory),
			"old_team":     result.OldTeam,
			"new_team":     result.NewTeam,
			"old_status":   string(result.OldStatus),
			"new_status":   string(result.NewStatus),
		}
		if result.OldETA != nil {
			details["old_eta"] = result.OldETA.Format(time.RFC3339)
		}
		if result.NewETA != nil {
			details["new_eta"] = result.NewETA.Format(time.RFC3339)
		}
		return result.Message, details, true

	case domain.IntentReopenTicket:
		result, err := s.executor.Reopen(ctx, input.OwnerID, intent.TicketID)
		if err != nil {
			return s.actionFailure(err), nil, false
		}
		details := map[string]any{
			"ticket_id":  result.TicketID,
			"old_status": string(result.OldStatus),
			"new_status": string(result.NewStatus),
		}
		return result.Message, details, true
	}
	return "", nil, false
}

// actionFailure converts executor errors into conversational text. Store
// failures abort only the action; the turn still answers as chat.
func (s *ConversationService) actionFailure(err error) string {
	domainErr := apperrors.ToDomainError(err)
	switch domainErr.Code {
	case "NOT_FOUND":
		return "I couldn't find that ticket among your open tickets, so no changes were made."
	case "INVALID_CATEGORY":
		return fmt.Sprintf("That category isn't available (%s), so no changes were made.", domainErr.Message)
	case "INVALID_STATE":
		return fmt.Sprintf("I couldn't do that: %s. No changes were made.", domainErr.Message)
	default:
		s.logger.Error("action execution failed", zap.Error(err))
		return "Something went wrong while updating your ticket, so no changes were made."
	}
}

func (s *ConversationService) resolveSession(ctx context.Context, input TurnInput) (*domain.ChatSession, error) {
	if input.SessionID != nil {
		return s.chats.GetSessionByIDAndOwner(ctx, *input.SessionID, input.OwnerID)
	}
	session := &domain.ChatSession{
		ExternalKey: uuid.NewString(),
		OwnerID:     input.OwnerID,
		Title:       sessionTitle(input.Message),
	}
	if err := s.chats.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns the owner's sessions, most recently active first.
func (s *ConversationService) ListSessions(ctx context.Context, ownerID string) ([]domain.ChatSession, error) {
	return s.chats.ListSessionsByOwner(ctx, ownerID)
}

// ListMessages returns a session's messages after verifying ownership.
func (s *ConversationService) ListMessages(ctx context.Context, ownerID string, sessionID int64) ([]domain.ChatMessage, error) {
	if _, err := s.chats.GetSessionByIDAndOwner(ctx, sessionID, ownerID); err != nil {
		return nil, err
	}
	return s.chats.ListMessages(ctx, sessionID)
}

// DeleteSession removes a session and all of its messages.
func (s *ConversationService) DeleteSession(ctx context.Context, ownerID string, sessionID int64) error {
	return s.chats.DeleteSession(ctx, sessionID, ownerID)
}

// FormatTicketContext renders the owner's tickets into the textual
// summary handed to the intent detector and the reply generator.
func FormatTicketContext(tickets []domain.Ticket) string {
	if len(tickets) == 0 {
		return "No pending tickets found for this customer."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Customer has %d pending ticket(s):\n", len(tickets))
	for _, ticket := range tickets {
		fmt.Fprintf(&b, "\nTicket #%d:\n", ticket.ID)
		fmt.Fprintf(&b, "  - Category: %s\n", ticket.Category)
		fmt.Fprintf(&b, "  - Status: %s\n", ticket.Status)
		fmt.Fprintf(&b, "  - Assigned Team: %s\n", ticket.AssignedTeam)
		fmt.Fprintf(&b, "  - Message: %s\n", truncate(ticket.Message, 200))
		fmt.Fprintf(&b, "  - Created: %s\n", ticket.CreatedAt.Format(time.RFC3339))
		if ticket.ExpectedResolvedAt != nil {
			fmt.Fprintf(&b, "  - Estimated Time to Resolve: %s\n", ticket.ExpectedResolvedAt.Format(time.RFC3339))
		}
	}
	return b.String()
}

func (s *ConversationService) emit(emit EmitFunc, event ProgressEvent) {
	if emit != nil {
		emit(event)
	}
}

func statusEvent(stage, message string) ProgressEvent {
	return ProgressEvent{Type: "status", Status: stage, Message: message}
}

func sessionTitle(message string) string {
	return truncate(strings.TrimSpace(message), 60)
}

func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	if max <= 3 {
		return text[:max]
	}
	return text[:max-3] + "..."
}

func turnErrorMessage(err error) string {
	domainErr := apperrors.ToDomainError(err)
	if domainErr.Code == "INTERNAL_ERROR" {
		return "Something went wrong while handling your message. Please try again."
	}
	return domainErr.Message
}
