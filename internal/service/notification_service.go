package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
)

// NotificationService handles emitting notifications for domain events.
// Delivery is best-effort: failures are logged and never propagate back
// to the mutation that triggered them.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, users repository.UserRepository, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		users:      users,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketRecategorized, n.handleTicketRecategorized)
	n.dispatcher.Subscribe(events.EventTicketReopened, n.handleTicketReopened)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	body := fmt.Sprintf("Your ticket #%d has been created and routed to %s.", event.TicketID, payload.AssignedTeam)
	audioRef := n.generateVoicemailStub(event.TicketID, body)
	n.sendEmailStub(ctx, event.OwnerID, event.TicketID, body, audioRef)
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	body := fmt.Sprintf("Your ticket #%d moved from %s to %s.", event.TicketID, payload.OldStatus, payload.NewStatus)
	audioRef := n.generateVoicemailStub(event.TicketID, body)
	n.sendEmailStub(ctx, event.OwnerID, event.TicketID, body, audioRef)
	return nil
}

func (n *NotificationService) handleTicketRecategorized(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketRecategorizedPayload)
	if !ok {
		return nil
	}
	body := fmt.Sprintf("Your ticket #%d was moved from %s to %s and is now handled by %s.",
		event.TicketID, payload.OldCategory, payload.NewCategory, payload.NewTeam)
	n.sendEmailStub(ctx, event.OwnerID, event.TicketID, body, "")
	return nil
}

func (n *NotificationService) handleTicketReopened(ctx context.Context, event events.Event) error {
	body := fmt.Sprintf("Your ticket #%d has been reopened and is pending review.", event.TicketID)
	n.sendEmailStub(ctx, event.OwnerID, event.TicketID, body, "")
	return nil
}

// sendEmailStub resolves the owner's address and logs the outbound mail.
// Actual SMTP delivery lives behind this boundary.
func (n *NotificationService) sendEmailStub(ctx context.Context, ownerID string, ticketID int64, body, audioRef string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	user, err := n.users.GetByID(ctx, ownerID)
	if err != nil {
		n.logger.Warn("notification skipped: owner lookup failed",
			zap.String("owner_id", ownerID),
			zap.Int64("ticket_id", ticketID),
			zap.Error(err))
		return
	}
	n.logger.Info("sendEmailNotification",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", user.Email),
		zap.Int64("ticket_id", ticketID),
		zap.String("body", body),
		zap.String("audio_ref", audioRef))
}

// generateVoicemailStub returns the audio reference a TTS backend would
// produce for the notification body.
func (n *NotificationService) generateVoicemailStub(ticketID int64, body string) string {
	if n.cfg.AudioDir == "" {
		return ""
	}
	ref := fmt.Sprintf("%s/ticket_%d_notification.mp3", n.cfg.AudioDir, ticketID)
	n.logger.Debug("generateVoicemail",
		zap.Int64("ticket_id", ticketID),
		zap.String("audio_ref", ref),
		zap.Int("body_len", len(body)))
	return ref
}
