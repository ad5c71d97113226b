package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/meetup-service/internal/domain"
	"github.com/spec-kit/meetup-service/internal/persistence"
)

// RequestRepository is the request pool: it owns request rows and the
// selection policy for finding a match counterpart.
type RequestRepository interface {
	Insert(ctx context.Context, request *domain.Request) error
	FindPendingByUser(ctx context.Context, userID int64) (*domain.Request, error)
	// FindOldestCompatible returns the single oldest pending request for the
	// area and time slot whose requester has the required gender, excluding
	// requests owned by excludeUserID. Returns nil when no candidate exists.
	// Party size is deliberately not part of the filter.
	FindOldestCompatible(ctx context.Context, area, timeSlot string, excludeUserID int64, gender domain.Gender) (*domain.Request, error)
	// MarkMatched transitions both requests PENDING -> MATCHED. It fails if
	// either row is no longer pending.
	MarkMatched(ctx context.Context, requestIDA, requestIDB int64) error
	// DeletePending removes the request only while it is still pending and
	// owned by userID. Reports whether a row was removed; a matched or
	// unknown request is a no-op, not an error.
	DeletePending(ctx context.Context, requestID, userID int64) (bool, error)
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository returns a Postgres-backed implementation.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

func (r *requestRepository) db(ctx context.Context) persistence.Querier {
	if tx, ok := persistence.TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

func (r *requestRepository) Insert(ctx context.Context, request *domain.Request) error {
	const query = `
        INSERT INTO requests (user_id, area, time_slot, group_size, status)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`

	request.Status = domain.RequestStatusPending
	return r.db(ctx).QueryRow(ctx, query,
		request.UserID,
		request.Area,
		request.TimeSlot,
		request.GroupSize,
		request.Status,
	).Scan(&request.ID, &request.CreatedAt)
}

func (r *requestRepository) FindPendingByUser(ctx context.Context, userID int64) (*domain.Request, error) {
	const query = `
        SELECT id, user_id, area, time_slot, group_size, status, created_at
        FROM requests WHERE user_id=$1 AND status=$2`

	request, err := r.fetchSingle(ctx, query, userID, domain.RequestStatusPending)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return request, err
}

func (r *requestRepository) FindOldestCompatible(ctx context.Context, area, timeSlot string, excludeUserID int64, gender domain.Gender) (*domain.Request, error) {
	const query = `
        SELECT r.id, r.user_id, r.area, r.time_slot, r.group_size, r.status, r.created_at
        FROM requests r
        JOIN users u ON u.id = r.user_id
        WHERE r.status = $1
          AND r.area = $2
          AND r.time_slot = $3
          AND r.user_id <> $4
          AND u.gender = $5
        ORDER BY r.created_at ASC, r.id ASC
        LIMIT 1`

	request, err := r.fetchSingle(ctx, query, domain.RequestStatusPending, area, timeSlot, excludeUserID, gender)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return request, err
}

func (r *requestRepository) MarkMatched(ctx context.Context, requestIDA, requestIDB int64) error {
	const query = `
        UPDATE requests SET status=$1
        WHERE id IN ($2, $3) AND status=$4`

	cmd, err := r.db(ctx).Exec(ctx, query,
		domain.RequestStatusMatched,
		requestIDA,
		requestIDB,
		domain.RequestStatusPending,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() != 2 {
		return fmt.Errorf("mark matched: expected 2 pending requests, updated %d", cmd.RowsAffected())
	}
	return nil
}

func (r *requestRepository) DeletePending(ctx context.Context, requestID, userID int64) (bool, error) {
	const query = `
        DELETE FROM requests
        WHERE id=$1 AND user_id=$2 AND status=$3`

	cmd, err := r.db(ctx).Exec(ctx, query, requestID, userID, domain.RequestStatusPending)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *requestRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Request, error) {
	var request domain.Request
	if err := r.db(ctx).QueryRow(ctx, query, args...).Scan(
		&request.ID,
		&request.UserID,
		&request.Area,
		&request.TimeSlot,
		&request.GroupSize,
		&request.Status,
		&request.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &request, nil
}
