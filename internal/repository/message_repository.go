package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/meetup-service/internal/domain"
	"github.com/spec-kit/meetup-service/internal/persistence"
)

// MessageRepository manages the append-only per-match message log.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListByMatch(ctx context.Context, matchID int64, limit, offset int) ([]domain.Message, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository returns a Postgres-backed implementation.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) db(ctx context.Context) persistence.Querier {
	if tx, ok := persistence.TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (match_id, sender_user_id, body)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`

	return r.db(ctx).QueryRow(ctx, query,
		msg.MatchID,
		msg.SenderUserID,
		msg.Body,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *messageRepository) ListByMatch(ctx context.Context, matchID int64, limit, offset int) ([]domain.Message, error) {
	const query = `
        SELECT m.id, m.match_id, m.sender_user_id, u.username, m.body, m.created_at
        FROM messages m
        JOIN users u ON u.id = m.sender_user_id
        WHERE m.match_id = $1
        ORDER BY m.id ASC
        LIMIT $2 OFFSET $3`

	rows, err := r.db(ctx).Query(ctx, query, matchID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.MatchID,
			&msg.SenderUserID,
			&msg.SenderUsername,
			&msg.Body,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
