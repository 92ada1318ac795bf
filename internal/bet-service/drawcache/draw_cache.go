package drawcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bingaodosamigos/bingao-platform/internal/shared/repo"
)

const keyCurrent = "draws:current"

// Cache guarda o sorteio atual no Redis; a tabela draws muda só quando o admin publica
type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *Cache { return &Cache{R: r, TTL: ttl} }

func (c *Cache) GetCurrent(ctx context.Context) (repo.Draw, bool, error) {
	b, err := c.R.Get(ctx, keyCurrent).Bytes()
	if err == redis.Nil {
		return repo.Draw{}, false, nil
	}
	if err != nil {
		return repo.Draw{}, false, err
	}
	var d repo.Draw
	if err := json.Unmarshal(b, &d); err != nil {
		return repo.Draw{}, false, err
	}
	return d, true, nil
}

func (c *Cache) SetCurrent(ctx context.Context, d repo.Draw) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, keyCurrent, b, c.TTL).Err()
}
