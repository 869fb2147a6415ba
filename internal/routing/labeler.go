package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
)

// ModelLabeler classifies ticket text through a chat model.
type ModelLabeler struct {
	chatModel model.BaseChatModel
}

// NewModelLabeler builds a labeler backed by the configured OpenAI model.
// Returns nil when no API key is configured so the router runs on its
// keyword fallback alone.
func NewModelLabeler(ctx context.Context, cfg config.OpenAIConfig) (*ModelLabeler, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("init labeler model: %w", err)
	}
	return &ModelLabeler{chatModel: chatModel}, nil
}

// NewModelLabelerWith wraps an existing chat model.
func NewModelLabelerWith(chatModel model.BaseChatModel) *ModelLabeler {
	return &ModelLabeler{chatModel: chatModel}
}

// Label asks the model for one of the fixed labels.
func (l *ModelLabeler) Label(ctx context.Context, text string) (domain.Category, error) {
	prompt := fmt.Sprintf(
		"Based on these ticket routing categories: billing, technical, delivery, general. "+
			"Classify this ticket message into one category: %q. "+
			"Respond with only the category name.", text)

	resp, err := l.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	return extractCategory(resp.Content), nil
}

// extractCategory finds the first known label mentioned in the model
// response; anything unrecognized maps to general.
func extractCategory(response string) domain.Category {
	lower := strings.ToLower(response)
	for _, category := range domain.Categories {
		if strings.Contains(lower, string(category)) {
			return category
		}
	}
	return domain.CategoryGeneral
}
