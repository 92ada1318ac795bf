package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bingaodosamigos/bingao-platform/internal/shared/kafka"
	"github.com/bingaodosamigos/bingao-platform/pkg/contracts/events"
)

// sliceReader entrega as mensagens em ordem e depois cancela o contexto
type sliceReader struct {
	msgs   []kafka.Message
	errs   []error
	cancel context.CancelFunc
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

type fakeStats struct {
	mu       sync.Mutex
	seen     map[string]bool
	failures int
	calls    int
}

func (f *fakeStats) RecordApproved(_ context.Context, betID string, _ [][]int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return false, errors.New("redis timeout")
	}
	if f.seen[betID] {
		return false, nil
	}
	f.seen[betID] = true
	return true, nil
}

type captureWriter struct{ msgs []kafka.Message }

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func settled(t *testing.T, betID, status string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(events.BetSettled{
		BetID:      betID,
		Status:     status,
		Selections: [][]int{{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
	})
	require.NoError(t, err)
	return kafka.Message{Key: []byte(betID), Value: b}
}

type counters struct {
	consumed, recorded, skipped int
	errors                      map[string]int
}

func run(t *testing.T, p *Processor, r *sliceReader) *counters {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	c := &counters{errors: map[string]int{}}
	p.Log = zap.NewNop()
	p.Reader = r
	p.Backoff = time.Millisecond
	p.OnConsumed = func() { c.consumed++ }
	p.OnRecorded = func() { c.recorded++ }
	p.OnSkipped = func() { c.skipped++ }
	p.OnError = func(stage string) { c.errors[stage]++ }

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	return c
}

func TestProcessor_RecordsApprovedOnce(t *testing.T) {
	stats := &fakeStats{seen: map[string]bool{}}
	r := &sliceReader{msgs: []kafka.Message{
		settled(t, "bet-1", "approved"),
		settled(t, "bet-1", "approved"), // reentrega
		settled(t, "bet-2", "rejected"),
	}}

	c := run(t, &Processor{Stats: stats}, r)

	assert.Equal(t, 3, c.consumed)
	assert.Equal(t, 1, c.recorded)
	assert.Equal(t, 2, c.skipped)
	assert.Equal(t, 2, stats.calls)
}

func TestProcessor_InvalidMessageGoesToDLQ(t *testing.T) {
	dlq := &captureWriter{}
	r := &sliceReader{msgs: []kafka.Message{
		{Key: []byte("x"), Value: []byte("not json")},
		{Key: []byte("y"), Value: []byte(`{"status":"approved"}`)},
	}}

	c := run(t, &Processor{Stats: &fakeStats{seen: map[string]bool{}}, DLQ: dlq}, r)

	assert.Equal(t, 2, c.errors["decode"])
	require.Len(t, dlq.msgs, 2)
	assert.Equal(t, "not json", string(dlq.msgs[0].Value))
}

func TestProcessor_RetriesThenDeadLetters(t *testing.T) {
	dlq := &captureWriter{}

	stats := &fakeStats{seen: map[string]bool{}, failures: 1}
	c := run(t, &Processor{Stats: stats, DLQ: dlq, Retries: 2}, &sliceReader{msgs: []kafka.Message{settled(t, "bet-1", "approved")}})
	assert.Equal(t, 1, c.recorded)
	assert.Equal(t, 1, c.errors["stats"])
	assert.Empty(t, dlq.msgs)

	stats = &fakeStats{seen: map[string]bool{}, failures: 10}
	c = run(t, &Processor{Stats: stats, DLQ: dlq, Retries: 2}, &sliceReader{msgs: []kafka.Message{settled(t, "bet-2", "approved")}})
	assert.Equal(t, 3, stats.calls)
	assert.Equal(t, 3, c.errors["stats"])
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "bet-2", string(dlq.msgs[0].Key))
}

func TestProcessor_ReadErrorsAreRetried(t *testing.T) {
	stats := &fakeStats{seen: map[string]bool{}}
	r := &sliceReader{
		errs: []error{errors.New("broker not available")},
		msgs: []kafka.Message{settled(t, "bet-1", "approved")},
	}

	c := run(t, &Processor{Stats: stats}, r)

	assert.Equal(t, 1, c.errors["read"])
	assert.Equal(t, 1, c.recorded)
}
