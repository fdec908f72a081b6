package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisBudgetStore implements budgetStore against Redis INCR/EXPIRE, so the
// per-minute call counter and the daily token counter survive across
// graphragd instances instead of living in one process's memory.
type redisBudgetStore struct {
	client   *redis.Client
	limitMin int
	dayCap   int
}

func newRedisBudgetStore(url string, limitPerMin, dailyTokenBudget int) (*redisBudgetStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return &redisBudgetStore{client: redis.NewClient(opts), limitMin: limitPerMin, dayCap: dailyTokenBudget}, nil
}

func (r *redisBudgetStore) minuteKey(namespace string, now time.Time) string {
	return fmt.Sprintf("graphrag:cluster:calls:%s:%d", namespace, now.Unix()/60)
}

func (r *redisBudgetStore) dayKey(namespace string, now time.Time) string {
	return fmt.Sprintf("graphrag:cluster:tokens:%s:%s", namespace, now.UTC().Format("2006-01-02"))
}

func (r *redisBudgetStore) allow(namespace string, now time.Time) bool {
	ctx := context.Background()
	key := r.minuteKey(namespace, now)
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false
	}
	if n == 1 {
		r.client.Expire(ctx, key, time.Minute)
	}
	return int(n) <= r.limitMin
}

func (r *redisBudgetStore) tokensUsed(namespace string) int {
	ctx := context.Background()
	v, err := r.client.Get(ctx, r.dayKey(namespace, time.Now())).Int()
	if err != nil {
		return 0
	}
	return v
}

func (r *redisBudgetStore) budgetRemaining(namespace string) int {
	remaining := r.dayCap - r.tokensUsed(namespace)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (r *redisBudgetStore) spend(namespace string, n int) {
	ctx := context.Background()
	key := r.dayKey(namespace, time.Now())
	newVal, err := r.client.IncrBy(ctx, key, int64(n)).Result()
	if err != nil {
		return
	}
	if newVal == int64(n) {
		r.client.Expire(ctx, key, 48*time.Hour)
	}
}
