package consumer

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/bingaodosamigos/bingao-platform/internal/shared/kafka"
	"github.com/bingaodosamigos/bingao-platform/pkg/contracts/events"
)

// MessageReader é o lado consumidor do *kafka.Reader
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Recorder soma os números de uma aposta aprovada; false = já contada
type Recorder interface {
	RecordApproved(ctx context.Context, betID string, selections [][]int) (bool, error)
}

// Processor consome bet_settled e alimenta as estatísticas de números favoritos.
// Mensagens ilegíveis ou que falham repetidamente vão para a DLQ.
type Processor struct {
	Log     *zap.Logger
	Reader  MessageReader
	Stats   Recorder
	DLQ     kafka.MessageWriter
	Retries int
	Backoff time.Duration

	OnConsumed func()       // métricas (counter++)
	OnRecorded func()       // métricas
	OnSkipped  func()       // métricas: rejeitada ou reentrega
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal; retorna quando o contexto é cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			if !sleep(ctx, p.backoff()) {
				return ctx.Err()
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.process(ctx, m)
	}
}

func (p *Processor) process(ctx context.Context, m kafka.Message) {
	var ev events.BetSettled
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.BetID == "" {
		p.Log.Warn("invalid bet_settled message", zap.ByteString("key", m.Key), zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m)
		return
	}
	log := p.Log.With(zap.String("bet_id", ev.BetID), zap.String("status", ev.Status))

	if ev.Status != "approved" {
		log.Debug("bet not approved; skipping stats")
		p.skipped()
		return
	}

	attempts := p.Retries + 1
	for i := 0; i < attempts; i++ {
		counted, err := p.Stats.RecordApproved(ctx, ev.BetID, ev.Selections)
		if err == nil {
			if counted {
				log.Debug("numbers recorded", zap.Int("selections", len(ev.Selections)))
				if p.OnRecorded != nil {
					p.OnRecorded()
				}
			} else {
				p.skipped()
			}
			return
		}

		log.Warn("stats record failed", zap.Int("attempt", i+1), zap.Error(err))
		p.fail("stats")
		if i < attempts-1 && !sleep(ctx, p.backoff()*time.Duration(i+1)) {
			return
		}
	}
	p.deadLetter(ctx, m)
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message) {
	if p.DLQ == nil {
		return
	}
	err := p.DLQ.WriteMessages(ctx, kafka.Message{Key: m.Key, Value: m.Value, Time: time.Now()})
	if err != nil {
		p.Log.Error("dlq publish failed", zap.Error(err))
		p.fail("dlq")
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func (p *Processor) skipped() {
	if p.OnSkipped != nil {
		p.OnSkipped()
	}
}

func (p *Processor) backoff() time.Duration {
	if p.Backoff <= 0 {
		return 500 * time.Millisecond
	}
	return p.Backoff
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
