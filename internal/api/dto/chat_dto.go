package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ChatTurnRequest payload for one conversational turn.
type ChatTurnRequest struct {
	SessionID *int64 `json:"session_id"`
	Message   string `json:"message"`
}

// ChatSessionResponse summarizes a session for listing.
type ChatSessionResponse struct {
	ID          int64     `json:"id"`
	ExternalKey string    `json:"external_key"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChatMessageResponse is one message of a session transcript.
type ChatMessageResponse struct {
	ID        int64           `json:"id"`
	Role      domain.ChatRole `json:"role"`
	Content   string          `json:"content"`
	AudioPath *string         `json:"audio_path,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// FromChatSession maps the domain model onto the response shape.
func FromChatSession(session *domain.ChatSession) ChatSessionResponse {
	return ChatSessionResponse{
		ID:          session.ID,
		ExternalKey: session.ExternalKey,
		Title:       session.Title,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
}

// FromChatMessage maps the domain model onto the response shape.
func FromChatMessage(message *domain.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:        message.ID,
		Role:      message.Role,
		Content:   message.Content,
		AudioPath: message.AudioPath,
		CreatedAt: message.CreatedAt,
	}
}
