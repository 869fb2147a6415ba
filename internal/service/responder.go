package service

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

const responderSystemPrompt = `You are a helpful customer support assistant for a ticketing system.
You help customers with their support tickets: answering questions, explaining ticket
status and deciding when they need something changed.

Guidelines:
- Be friendly, concise and professional.
- Use the ticket context below to answer questions about the customer's tickets.
- If an action was just performed on a ticket, confirm it naturally in your reply.
- If an action could not be performed, relay the reason politely and suggest what to do next.
- Never invent ticket numbers or statuses that are not in the context.`

// ModelResponder generates conversational replies with a chat model.
type ModelResponder struct {
	chatModel model.BaseChatModel
	logger    *zap.Logger
}

// NewModelResponder constructs the responder. A nil chat model is not
// usable here; the caller must supply one.
func NewModelResponder(chatModel model.BaseChatModel, logger *zap.Logger) *ModelResponder {
	return &ModelResponder{chatModel: chatModel, logger: logger}
}

// GenerateReply builds the prompt from ticket context, recent history
// and any action outcome, then asks the model for a reply.
func (r *ModelResponder) GenerateReply(ctx context.Context, userQuery, ticketContext string, history []domain.ChatMessage, actionResult string) (string, error) {
	if r.chatModel == nil {
		return "", fmt.Errorf("responder: no chat model configured")
	}

	system := fmt.Sprintf("%s\n\nCurrent ticket context:\n%s", responderSystemPrompt, ticketContext)
	if actionResult != "" {
		system = fmt.Sprintf("%s\n\nAction just performed this turn:\n%s", system, actionResult)
	}

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(system))
	for _, entry := range history {
		switch entry.Role {
		case domain.ChatRoleUser:
			messages = append(messages, schema.UserMessage(entry.Content))
		case domain.ChatRoleAssistant:
			messages = append(messages, schema.AssistantMessage(entry.Content, nil))
		}
	}
	if len(history) == 0 || history[len(history)-1].Content != userQuery {
		messages = append(messages, schema.UserMessage(userQuery))
	}

	resp, err := r.chatModel.Generate(ctx, messages)
	if err != nil {
		r.logger.Error("reply generation failed", zap.Error(err))
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return resp.Content, nil
}
