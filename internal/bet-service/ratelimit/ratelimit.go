package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter é uma janela fixa por usuário/ação: INCR + EXPIRE no primeiro hit
type Limiter struct{ r *redis.Client }

func New(r *redis.Client) *Limiter { return &Limiter{r: r} }

func key(userID, action string) string { return fmt.Sprintf("ratelimit:%s:%s", userID, action) }

func (l *Limiter) Allow(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error) {
	k := key(userID, action)

	count, err := l.r.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.r.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	return count <= int64(limit), nil
}
