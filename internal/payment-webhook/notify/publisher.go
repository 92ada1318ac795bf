package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bingaodosamigos/bingao-platform/internal/shared/kafka"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/repo"
	"github.com/bingaodosamigos/bingao-platform/pkg/contracts/events"
)

// RedisPublisher é o lado Publish do *redis.Client
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher espalha uma aposta liquidada: evento no Kafka (bet-stats) e
// status no Redis Pub/Sub (WebSocket do bet-service)
type Publisher struct {
	Writer  kafka.MessageWriter
	Redis   RedisPublisher
	Channel string
	Timeout time.Duration
}

func NewPublisher(w kafka.MessageWriter, r RedisPublisher, channel string) *Publisher {
	return &Publisher{Writer: w, Redis: r, Channel: channel, Timeout: 2 * time.Second}
}

func (p *Publisher) BetSettled(ctx context.Context, b repo.Bet) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	now := time.Now().UTC()

	var errs []error
	if p.Writer != nil {
		ev := events.BetSettled{
			BetID:         b.ID,
			UserID:        b.UserID,
			Status:        string(b.Status),
			PaymentID:     b.PaymentID,
			Amount:        b.Amount.StringFixed(2),
			ContestNumber: b.ContestNumber,
			Selections:    b.Selections,
			Ts:            now,
		}
		if err := kafka.WriteJSON(ctx, p.Writer, b.ID, ev); err != nil {
			errs = append(errs, fmt.Errorf("publish bet_settled: %w", err))
		}
	}

	if p.Redis != nil && p.Channel != "" {
		payload, _ := json.Marshal(events.BetStatusUpdate{BetID: b.ID, Status: string(b.Status), Ts: now})
		if err := p.Redis.Publish(ctx, p.Channel, payload).Err(); err != nil {
			errs = append(errs, fmt.Errorf("broadcast bet status: %w", err))
		}
	}
	return errors.Join(errs...)
}
