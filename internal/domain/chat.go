package domain

import "time"

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatSession groups an ordered sequence of messages for one owner.
// UpdatedAt is bumped on every appended message.
type ChatSession struct {
	ID          int64
	ExternalKey string
	OwnerID     string
	Title       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChatMessage is a single turn entry within a session. Messages are
// appended, never mutated.
type ChatMessage struct {
	ID        int64
	SessionID int64
	Role      ChatRole
	Content   string
	AudioPath *string
	CreatedAt time.Time
}
