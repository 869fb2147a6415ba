package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// TicketsHandler manages end-user ticket endpoints.
type TicketsHandler struct {
	agent *service.AgentService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(agent *service.AgentService) *TicketsHandler {
	return &TicketsHandler{agent: agent}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Message) == "" {
		return apperrors.NewValidationError("message required", nil)
	}

	result, err := h.agent.CreateWithAttachment(c.Context(), principal.User.ID, principal.User.Name, req.Message, req.AttachmentPath)
	if err != nil {
		return err
	}
	ticket, err := h.agent.Get(c.Context(), principal.User.ID, result.TicketID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CreateTicketResponse{
		Ticket:  dto.FromTicket(ticket),
		Warning: result.Warning,
		Message: result.Message,
	}})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	statuses, err := parseStatusFilter(c.Query("status"))
	if err != nil {
		return err
	}
	tickets, err := h.agent.List(c.Context(), principal.User.ID, statuses)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	ticketID, err := parseTicketID(c.Params("id"))
	if err != nil {
		return err
	}
	ticket, err := h.agent.Get(c.Context(), principal.User.ID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// RecategorizeTicket PATCH /tickets/:id/category.
func (h *TicketsHandler) RecategorizeTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	ticketID, err := parseTicketID(c.Params("id"))
	if err != nil {
		return err
	}
	var req dto.RecategorizeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Category == "" {
		return apperrors.NewValidationError("category required", nil)
	}

	result, err := h.agent.Recategorize(c.Context(), principal.User.ID, ticketID, domain.Category(req.Category))
	if err != nil {
		return err
	}
	ticket, err := h.agent.Get(c.Context(), principal.User.ID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket":  dto.FromTicket(ticket),
		"message": result.Message,
	}})
}

// ReopenTicket POST /tickets/:id/reopen.
func (h *TicketsHandler) ReopenTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	ticketID, err := parseTicketID(c.Params("id"))
	if err != nil {
		return err
	}
	result, err := h.agent.Reopen(c.Context(), principal.User.ID, ticketID)
	if err != nil {
		return err
	}
	ticket, err := h.agent.Get(c.Context(), principal.User.ID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket":  dto.FromTicket(ticket),
		"message": result.Message,
	}})
}

// UpdateTicketStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateTicketStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	ticketID, err := parseTicketID(c.Params("id"))
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}

	result, err := h.agent.UpdateStatus(c.Context(), principal.User.ID, ticketID, domain.TicketStatus(req.Status))
	if err != nil {
		return err
	}
	ticket, err := h.agent.Get(c.Context(), principal.User.ID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket":  dto.FromTicket(ticket),
		"message": result.Message,
	}})
}

// ClassifyTicket POST /tickets/classify. Classifies a message without
// creating a ticket so callers can preview the routing outcome.
func (h *TicketsHandler) ClassifyTicket(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Message) == "" {
		return apperrors.NewValidationError("message required", nil)
	}

	classification, team, eta := h.agent.Preview(c.Context(), req.Message)
	return c.JSON(fiber.Map{"data": dto.ClassifyResponse{
		Category:     string(classification.Category),
		Confidence:   classification.Confidence,
		AssignedTeam: team,
		ETA:          eta,
		Warning:      classification.Warning,
	}})
}

func parseTicketID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": raw})
	}
	return id, nil
}

func parseStatusFilter(raw string) ([]domain.TicketStatus, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]domain.TicketStatus, 0, len(parts))
	for _, part := range parts {
		status := domain.TicketStatus(strings.ToLower(strings.TrimSpace(part)))
		if !domain.IsValidStatus(status) {
			return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": part})
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
