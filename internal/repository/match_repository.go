package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/meetup-service/internal/domain"
	"github.com/spec-kit/meetup-service/internal/persistence"
)

// MatchRepository is the match registry: the source of truth for who is
// matched with whom. Matches are insert-only.
type MatchRepository interface {
	Create(ctx context.Context, match *domain.Match) error
	// ListViewsForUser resolves every match touching userID into the
	// caller's perspective, newest first.
	ListViewsForUser(ctx context.Context, userID int64) ([]domain.MatchView, error)
	// ParticipantUserIDs returns the two user ids behind a match's requests.
	ParticipantUserIDs(ctx context.Context, matchID int64) (int64, int64, error)
}

type matchRepository struct {
	pool *pgxpool.Pool
}

// NewMatchRepository returns a Postgres-backed implementation.
func NewMatchRepository(pool *pgxpool.Pool) MatchRepository {
	return &matchRepository{pool: pool}
}

func (r *matchRepository) db(ctx context.Context) persistence.Querier {
	if tx, ok := persistence.TxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

func (r *matchRepository) Create(ctx context.Context, match *domain.Match) error {
	const query = `
        INSERT INTO matches (request_id_a, request_id_b)
        VALUES ($1, $2)
        RETURNING id, matched_at`

	return r.db(ctx).QueryRow(ctx, query,
		match.RequestIDA,
		match.RequestIDB,
	).Scan(&match.ID, &match.MatchedAt)
}

func (r *matchRepository) ListViewsForUser(ctx context.Context, userID int64) ([]domain.MatchView, error) {
	const query = `
        SELECT m.id, m.matched_at,
               ra.user_id, ra.area, ra.time_slot, ra.group_size, ua.username,
               rb.user_id, rb.group_size, ub.username
        FROM matches m
        JOIN requests ra ON ra.id = m.request_id_a
        JOIN requests rb ON rb.id = m.request_id_b
        JOIN users ua ON ua.id = ra.user_id
        JOIN users ub ON ub.id = rb.user_id
        WHERE ra.user_id = $1 OR rb.user_id = $1
        ORDER BY m.matched_at DESC, m.id DESC`

	rows, err := r.db(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []domain.MatchView
	for rows.Next() {
		var (
			view                 domain.MatchView
			userA, userB         int64
			sizeA, sizeB         int
			usernameA, usernameB string
		)
		if err := rows.Scan(
			&view.MatchID,
			&view.MatchedAt,
			&userA,
			&view.Area,
			&view.TimeSlot,
			&sizeA,
			&usernameA,
			&userB,
			&sizeB,
			&usernameB,
		); err != nil {
			return nil, err
		}
		// Orient the view: side A holds the caller's request or the
		// counterpart's, depending on submission order.
		if userA == userID {
			view.MyGroupSize = sizeA
			view.CounterpartUserID = userB
			view.CounterpartUsername = usernameB
			view.CounterpartGroupSize = sizeB
		} else {
			view.MyGroupSize = sizeB
			view.CounterpartUserID = userA
			view.CounterpartUsername = usernameA
			view.CounterpartGroupSize = sizeA
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

func (r *matchRepository) ParticipantUserIDs(ctx context.Context, matchID int64) (int64, int64, error) {
	const query = `
        SELECT ra.user_id, rb.user_id
        FROM matches m
        JOIN requests ra ON ra.id = m.request_id_a
        JOIN requests rb ON rb.id = m.request_id_b
        WHERE m.id = $1`

	var userA, userB int64
	if err := r.db(ctx).QueryRow(ctx, query, matchID).Scan(&userA, &userB); err != nil {
		return 0, 0, err
	}
	return userA, userB, nil
}
