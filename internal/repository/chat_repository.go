package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ChatRepository persists chat sessions and their ordered messages.
// Sessions own their messages: deleting a session removes them all.
type ChatRepository interface {
	CreateSession(ctx context.Context, session *domain.ChatSession) error
	GetSessionByIDAndOwner(ctx context.Context, id int64, ownerID string) (*domain.ChatSession, error)
	ListSessionsByOwner(ctx context.Context, ownerID string) ([]domain.ChatSession, error)
	TouchSession(ctx context.Context, id int64) error
	DeleteSession(ctx context.Context, id int64, ownerID string) error
	AppendMessage(ctx context.Context, message *domain.ChatMessage) error
	ListMessages(ctx context.Context, sessionID int64) ([]domain.ChatMessage, error)
}

type chatRepository struct {
	pool *pgxpool.Pool
}

// NewChatRepository instantiates repository.
func NewChatRepository(pool *pgxpool.Pool) ChatRepository {
	return &chatRepository{pool: pool}
}

func (r *chatRepository) CreateSession(ctx context.Context, session *domain.ChatSession) error {
	const query = `
        INSERT INTO chat_sessions (external_key, owner_user_id, title)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		session.ExternalKey,
		session.OwnerID,
		session.Title,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
}

func (r *chatRepository) GetSessionByIDAndOwner(ctx context.Context, id int64, ownerID string) (*domain.ChatSession, error) {
	const query = `
        SELECT id, external_key, owner_user_id, title, created_at, updated_at
        FROM chat_sessions WHERE id=$1 AND owner_user_id=$2`
	var session domain.ChatSession
	if err := r.pool.QueryRow(ctx, query, id, ownerID).Scan(
		&session.ID,
		&session.ExternalKey,
		&session.OwnerID,
		&session.Title,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *chatRepository) ListSessionsByOwner(ctx context.Context, ownerID string) ([]domain.ChatSession, error) {
	const query = `
        SELECT id, external_key, owner_user_id, title, created_at, updated_at
        FROM chat_sessions WHERE owner_user_id=$1
        ORDER BY updated_at DESC`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []domain.ChatSession{}
	for rows.Next() {
		var session domain.ChatSession
		if err := rows.Scan(
			&session.ID,
			&session.ExternalKey,
			&session.OwnerID,
			&session.Title,
			&session.CreatedAt,
			&session.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (r *chatRepository) TouchSession(ctx context.Context, id int64) error {
	const query = `UPDATE chat_sessions SET updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *chatRepository) DeleteSession(ctx context.Context, id int64, ownerID string) error {
	// messages cascade via FK
	const query = `DELETE FROM chat_sessions WHERE id=$1 AND owner_user_id=$2`
	cmd, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *chatRepository) AppendMessage(ctx context.Context, message *domain.ChatMessage) error {
	const query = `
        INSERT INTO chat_messages (session_id, role, content, audio_path)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		message.SessionID,
		message.Role,
		message.Content,
		message.AudioPath,
	).Scan(&message.ID, &message.CreatedAt)
}

func (r *chatRepository) ListMessages(ctx context.Context, sessionID int64) ([]domain.ChatMessage, error) {
	const query = `
        SELECT id, session_id, role, content, audio_path, created_at
        FROM chat_messages WHERE session_id=$1
        ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.ChatMessage{}
	for rows.Next() {
		var message domain.ChatMessage
		if err := rows.Scan(
			&message.ID,
			&message.SessionID,
			&message.Role,
			&message.Content,
			&message.AudioPath,
			&message.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}
