package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ModelDetector asks a chat model for a structured intent. Any failure
// on this path resolves to a plain chat intent with full confidence; it
// never propagates errors to the caller.
type ModelDetector struct {
	chatModel model.BaseChatModel
	logger    *zap.Logger
}

// NewModelDetector constructs the detector. A nil chat model disables
// the model path entirely.
func NewModelDetector(chatModel model.BaseChatModel, logger *zap.Logger) *ModelDetector {
	return &ModelDetector{chatModel: chatModel, logger: logger}
}

var jsonBlock = regexp.MustCompile(`(?s)\{.*?\}`)

type intentPayload struct {
	Intent        string   `json:"intent"`
	TicketID      *int64   `json:"ticket_id"`
	Category      *string  `json:"category"`
	TicketMessage *string  `json:"ticket_message"`
	Confidence    *float64 `json:"confidence"`
}

// Detect asks the model whether the message requests an action.
func (d *ModelDetector) Detect(ctx context.Context, message, ticketContext string) domain.Intent {
	chatIntent := domain.Intent{Kind: domain.IntentChat, Confidence: 1.0}
	if d.chatModel == nil {
		return chatIntent
	}

	prompt := fmt.Sprintf(`Analyze this customer message and determine if they want to:
1. Create a new ticket
2. Change ticket category/team assignment
3. Reopen a ticket
4. Just chat/ask questions

Customer message: %q

Available tickets:
%s

Respond ONLY with a JSON object in this exact format:
{
    "intent": "create_ticket" | "update_category" | "reopen_ticket" | "chat",
    "ticket_id": <number or null>,
    "category": "<billing|technical|delivery|general>" or null,
    "ticket_message": "<extracted ticket message>" or null,
    "confidence": <0.0 to 1.0>
}

If intent is "create_ticket", extract the ticket message/content from the user's query and include it in "ticket_message".
If intent is "chat", only include intent and confidence. Do not include any other text.`, message, ticketContext)

	resp, err := d.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		d.logger.Warn("intent detection failed, treating as chat", zap.Error(err))
		return chatIntent
	}

	block := jsonBlock.FindString(resp.Content)
	if block == "" {
		return chatIntent
	}

	var payload intentPayload
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		d.logger.Warn("intent response not parseable, treating as chat", zap.Error(err))
		return chatIntent
	}
	return payload.toIntent()
}

func (p intentPayload) toIntent() domain.Intent {
	intent := domain.Intent{Kind: domain.IntentChat, Confidence: 1.0}

	switch domain.IntentKind(strings.ToLower(p.Intent)) {
	case domain.IntentCreateTicket:
		intent.Kind = domain.IntentCreateTicket
	case domain.IntentUpdateCategory:
		intent.Kind = domain.IntentUpdateCategory
	case domain.IntentReopenTicket:
		intent.Kind = domain.IntentReopenTicket
	case domain.IntentChat:
	default:
		return intent
	}

	if p.Confidence != nil {
		intent.Confidence = *p.Confidence
	}
	if p.TicketID != nil {
		intent.TicketID = *p.TicketID
	}
	if p.Category != nil {
		intent.Category = domain.Category(strings.ToLower(*p.Category))
	}
	if p.TicketMessage != nil {
		intent.Message = strings.TrimSpace(*p.TicketMessage)
	}
	return intent
}
