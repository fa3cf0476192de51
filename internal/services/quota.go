package services

import (
	"context"
	"sync"

	"genius-backend/internal/repository"
)

// QuotaService tracks per-identity usage against a free limit.
//
// Check and Increment are kept for callers that only read or only record;
// request handling goes through Consume, which does both atomically.
type QuotaService interface {
	Check(ctx context.Context, userID string) (bool, error)
	Increment(ctx context.Context, userID string) error
	Consume(ctx context.Context, userID string) (bool, error)
	Count(ctx context.Context, userID string) (int, error)
	Limit() int
}

// MemoryQuota keeps counts in process memory. Counts reset on restart.
type MemoryQuota struct {
	mu     sync.Mutex
	counts map[string]int
	limit  int
}

func NewMemoryQuota(limit int) *MemoryQuota {
	return &MemoryQuota{counts: make(map[string]int), limit: limit}
}

func (q *MemoryQuota) Check(ctx context.Context, userID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[userID] < q.limit, nil
}

func (q *MemoryQuota) Increment(ctx context.Context, userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.counts[userID]++
	return nil
}

func (q *MemoryQuota) Consume(ctx context.Context, userID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.counts[userID] >= q.limit {
		return false, nil
	}
	q.counts[userID]++
	return true, nil
}

func (q *MemoryQuota) Count(ctx context.Context, userID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[userID], nil
}

func (q *MemoryQuota) Limit() int { return q.limit }

type apiLimitRepository interface {
	Count(ctx context.Context, userID string) (int, error)
	Increment(ctx context.Context, userID string) error
	IncrementBelow(ctx context.Context, userID string, limit int) (bool, error)
}

// PostgresQuota stores counts in the user_api_limits table.
type PostgresQuota struct {
	repo  apiLimitRepository
	limit int
}

func NewPostgresQuota(repo *repository.APILimitRepo, limit int) *PostgresQuota {
	return &PostgresQuota{repo: repo, limit: limit}
}

func (q *PostgresQuota) Check(ctx context.Context, userID string) (bool, error) {
	count, err := q.repo.Count(ctx, userID)
	if err != nil {
		return false, err
	}
	return count < q.limit, nil
}

func (q *PostgresQuota) Increment(ctx context.Context, userID string) error {
	return q.repo.Increment(ctx, userID)
}

func (q *PostgresQuota) Consume(ctx context.Context, userID string) (bool, error) {
	return q.repo.IncrementBelow(ctx, userID, q.limit)
}

func (q *PostgresQuota) Count(ctx context.Context, userID string) (int, error) {
	return q.repo.Count(ctx, userID)
}

func (q *PostgresQuota) Limit() int { return q.limit }
