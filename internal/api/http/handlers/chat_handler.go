package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// ChatHandler exposes the conversational endpoints, including the SSE
// progress stream for a turn.
type ChatHandler struct {
	conversations *service.ConversationService
	logger        *zap.Logger
}

// NewChatHandler constructs handler.
func NewChatHandler(conversations *service.ConversationService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{conversations: conversations, logger: logger}
}

// StreamTurn POST /chat/stream. Runs one conversation turn and streams
// ordered progress events followed by a single terminal event.
func (h *ChatHandler) StreamTurn(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ChatTurnRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Message) == "" {
		return apperrors.NewValidationError("message required", nil)
	}

	input := service.TurnInput{
		OwnerID:      principal.User.ID,
		CustomerName: principal.User.Name,
		SessionID:    req.SessionID,
		Message:      req.Message,
	}

	// the stream writer runs after this handler returns, which is when
	// the request-scoped context gets cancelled; detach from it
	ctx := context.WithoutCancel(c.UserContext())
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		emit := func(event service.ProgressEvent) {
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("marshal progress event", zap.Error(err))
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			_ = w.Flush()
		}
		if _, err := h.conversations.Turn(ctx, input, emit); err != nil {
			h.logger.Warn("chat turn ended with error", zap.Error(err))
		}
	}))
	return nil
}

// ListSessions GET /chat/sessions.
func (h *ChatHandler) ListSessions(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	sessions, err := h.conversations.ListSessions(c.Context(), principal.User.ID)
	if err != nil {
		return err
	}
	items := make([]dto.ChatSessionResponse, 0, len(sessions))
	for i := range sessions {
		items = append(items, dto.FromChatSession(&sessions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListMessages GET /chat/sessions/:id/messages.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	sessionID, err := parseSessionID(c.Params("id"))
	if err != nil {
		return err
	}
	messages, err := h.conversations.ListMessages(c.Context(), principal.User.ID, sessionID)
	if err != nil {
		return err
	}
	items := make([]dto.ChatMessageResponse, 0, len(messages))
	for i := range messages {
		items = append(items, dto.FromChatMessage(&messages[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DeleteSession DELETE /chat/sessions/:id.
func (h *ChatHandler) DeleteSession(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	sessionID, err := parseSessionID(c.Params("id"))
	if err != nil {
		return err
	}
	if err := h.conversations.DeleteSession(c.Context(), principal.User.ID, sessionID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "deleted"}})
}

func parseSessionID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid session id", map[string]any{"id": raw})
	}
	return id, nil
}
