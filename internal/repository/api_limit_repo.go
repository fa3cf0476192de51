package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"genius-backend/internal/models"
)

// DBTX is the part of *pgxpool.Pool the repository uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type APILimitRepo struct {
	pool DBTX
}

func NewAPILimitRepo(pool DBTX) *APILimitRepo {
	return &APILimitRepo{pool: pool}
}

// GetByUserID returns the usage row of a user, or pgx.ErrNoRows.
func (r *APILimitRepo) GetByUserID(ctx context.Context, userID string) (*models.APILimit, error) {
	l := &models.APILimit{}
	query := `SELECT user_id, count, created_at, updated_at FROM user_api_limits WHERE user_id = $1`

	err := r.pool.QueryRow(ctx, query, userID).Scan(&l.UserID, &l.Count, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Count returns the recorded usage of a user; users without a row have used nothing.
func (r *APILimitRepo) Count(ctx context.Context, userID string) (int, error) {
	l, err := r.GetByUserID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return l.Count, nil
}

// Increment records one unit of usage unconditionally.
func (r *APILimitRepo) Increment(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_api_limits (user_id, count)
		VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE
		SET count = user_api_limits.count + 1, updated_at = NOW()`,
		userID,
	)
	return err
}

// IncrementBelow records one unit of usage only while the stored count is
// below limit. The check and the write happen in one statement, so concurrent
// callers cannot push the count past the limit. It reports whether a unit was
// recorded.
func (r *APILimitRepo) IncrementBelow(ctx context.Context, userID string, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}

	var count int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_api_limits (user_id, count)
		VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE
		SET count = user_api_limits.count + 1, updated_at = NOW()
		WHERE user_api_limits.count < $2
		RETURNING count`,
		userID, limit,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
