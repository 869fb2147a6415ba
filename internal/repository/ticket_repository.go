package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketRepository encapsulates ticket persistence. All reads that serve
// user actions are owner-scoped; WithTx runs a function against a
// transaction-bound repository so multi-field mutations commit atomically.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByIDAndOwner(ctx context.Context, id int64, ownerID string) (*domain.Ticket, error)
	ListByOwnerAndStatus(ctx context.Context, ownerID string, statuses []domain.TicketStatus) ([]domain.Ticket, error)
	ListByStatusCreatedBefore(ctx context.Context, status domain.TicketStatus, cutoff time.Time) ([]domain.Ticket, error)
	WithTx(ctx context.Context, fn func(TicketRepository) error) error
}

// querier abstracts pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ticketRepository struct {
	db   querier
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{db: pool, pool: pool}
}

const ticketColumns = `id, owner_user_id, customer, message, category, assigned_team,
               status, confidence, attachment_path, expected_resolved_at, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (owner_user_id, customer, message, category, assigned_team, status, confidence, attachment_path, expected_resolved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.OwnerID,
		ticket.Customer,
		ticket.Message,
		ticket.Category,
		ticket.AssignedTeam,
		ticket.Status,
		ticket.Confidence,
		ticket.AttachmentPath,
		ticket.ExpectedResolvedAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET category=$1, assigned_team=$2, status=$3, confidence=$4,
            attachment_path=$5, expected_resolved_at=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Category,
		ticket.AssignedTeam,
		ticket.Status,
		ticket.Confidence,
		ticket.AttachmentPath,
		ticket.ExpectedResolvedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByIDAndOwner(ctx context.Context, id int64, ownerID string) (*domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets WHERE id=$1 AND owner_user_id=$2`
	return r.fetchSingle(ctx, query, id, ownerID)
}

func (r *ticketRepository) ListByOwnerAndStatus(ctx context.Context, ownerID string, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets
        WHERE owner_user_id=$1 AND status = ANY($2)
        ORDER BY created_at DESC`
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	rows, err := r.db.Query(ctx, query, ownerID, values)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByStatusCreatedBefore(ctx context.Context, status domain.TicketStatus, cutoff time.Time) ([]domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets
        WHERE status=$1 AND created_at <= $2
        ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, status, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// WithTx executes fn against a transaction-bound repository. Calls on an
// already transactional repository reuse the open transaction.
func (r *ticketRepository) WithTx(ctx context.Context, fn func(TicketRepository) error) error {
	if r.pool == nil {
		return fn(r)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	txRepo := &ticketRepository{db: tx}
	if err := fn(txRepo); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.db.QueryRow(ctx, query, args...).Scan(
		&ticket.ID,
		&ticket.OwnerID,
		&ticket.Customer,
		&ticket.Message,
		&ticket.Category,
		&ticket.AssignedTeam,
		&ticket.Status,
		&ticket.Confidence,
		&ticket.AttachmentPath,
		&ticket.ExpectedResolvedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	tickets := []domain.Ticket{}
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.OwnerID,
			&ticket.Customer,
			&ticket.Message,
			&ticket.Category,
			&ticket.AssignedTeam,
			&ticket.Status,
			&ticket.Confidence,
			&ticket.AttachmentPath,
			&ticket.ExpectedResolvedAt,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}
