package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bingaodosamigos/bingao-platform/internal/shared/kafka"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/repo"
	"github.com/bingaodosamigos/bingao-platform/pkg/contracts/events"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

type published struct {
	channel string
	payload []byte
}

type captureRedis struct {
	got []published
	err error
}

func (c *captureRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	b, _ := message.([]byte)
	c.got = append(c.got, published{channel: channel, payload: b})
	return redis.NewIntResult(1, c.err)
}

func settledBet() repo.Bet {
	contest := 42
	return repo.Bet{
		ID:            "bet-1",
		UserID:        "u-1",
		Status:        repo.StatusApproved,
		PaymentID:     "pay-1",
		Amount:        decimal.RequireFromString("10"),
		ContestNumber: &contest,
		Selections:    [][]int{{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
	}
}

func TestBetSettled_PublishesEventAndStatus(t *testing.T) {
	w := &captureWriter{}
	r := &captureRedis{}
	p := NewPublisher(w, r, "bet_status_broadcast")

	require.NoError(t, p.BetSettled(context.Background(), settledBet()))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "bet-1", string(w.msgs[0].Key))
	var ev events.BetSettled
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "approved", ev.Status)
	assert.Equal(t, "pay-1", ev.PaymentID)
	assert.Equal(t, "10.00", ev.Amount)
	require.NotNil(t, ev.ContestNumber)
	assert.Equal(t, 42, *ev.ContestNumber)
	assert.Len(t, ev.Selections, 1)

	require.Len(t, r.got, 1)
	assert.Equal(t, "bet_status_broadcast", r.got[0].channel)
	var upd events.BetStatusUpdate
	require.NoError(t, json.Unmarshal(r.got[0].payload, &upd))
	assert.Equal(t, "bet-1", upd.BetID)
	assert.Equal(t, "approved", upd.Status)
}

func TestBetSettled_JoinsErrors(t *testing.T) {
	kafkaErr := errors.New("kafka unavailable")
	redisErr := errors.New("redis unavailable")
	p := NewPublisher(&captureWriter{err: kafkaErr}, &captureRedis{err: redisErr}, "ch")

	err := p.BetSettled(context.Background(), settledBet())
	assert.ErrorIs(t, err, kafkaErr)
	assert.ErrorIs(t, err, redisErr)
}

func TestBetSettled_RedisStillTriedWhenKafkaFails(t *testing.T) {
	r := &captureRedis{}
	p := NewPublisher(&captureWriter{err: errors.New("down")}, r, "ch")

	assert.Error(t, p.BetSettled(context.Background(), settledBet()))
	assert.Len(t, r.got, 1)
}

func TestBetSettled_OptionalSinks(t *testing.T) {
	p := NewPublisher(nil, nil, "")
	assert.NoError(t, p.BetSettled(context.Background(), settledBet()))
}
