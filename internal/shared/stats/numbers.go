package stats

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyNumbersPlayed = "stats:numbers:played"
	keyBetsApproved  = "stats:bets:approved"
	keySeenPrefix    = "stats:seen:"
)

// NumberCount é um número e quantas vezes ele foi jogado em apostas pagas
type NumberCount struct {
	Number int `json:"number"`
	Count  int `json:"count"`
}

// Store mantém a popularidade dos números num sorted set do Redis
type Store struct {
	r       *redis.Client
	seenTTL time.Duration
}

func NewStore(r *redis.Client) *Store { return &Store{r: r, seenTTL: 30 * 24 * time.Hour} }

// RecordApproved soma os números de uma aposta paga. Retorna false quando a
// aposta já tinha sido contada (reentrega do Kafka).
func (s *Store) RecordApproved(ctx context.Context, betID string, selections [][]int) (bool, error) {
	first, err := s.r.SetNX(ctx, keySeenPrefix+betID, 1, s.seenTTL).Result()
	if err != nil {
		return false, err
	}
	if !first {
		return false, nil
	}

	_, err = s.r.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, sel := range selections {
			for _, n := range sel {
				p.ZIncrBy(ctx, keyNumbersPlayed, 1, strconv.Itoa(n))
			}
		}
		p.Incr(ctx, keyBetsApproved)
		return nil
	})
	if err != nil {
		// libera a marca para que a próxima entrega tente de novo
		_ = s.r.Del(ctx, keySeenPrefix+betID).Err()
		return false, err
	}
	return true, nil
}

// Top retorna os n números mais jogados, do mais para o menos popular
func (s *Store) Top(ctx context.Context, n int) ([]NumberCount, error) {
	if n <= 0 {
		return []NumberCount{}, nil
	}
	zs, err := s.r.ZRevRangeWithScores(ctx, keyNumbersPlayed, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]NumberCount, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		num, err := strconv.Atoi(member)
		if err != nil {
			continue
		}
		out = append(out, NumberCount{Number: num, Count: int(z.Score)})
	}
	return out, nil
}

func (s *Store) ApprovedBets(ctx context.Context) (int64, error) {
	n, err := s.r.Get(ctx, keyBetsApproved).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
