package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrokerList(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, brokerList("a:9092, b:9092,"))
	assert.Nil(t, brokerList(""))
}

func TestNewWriter(t *testing.T) {
	w := NewWriter("kafka:9092", "bet_settled")
	defer w.Close()

	assert.Equal(t, "bet_settled", w.Topic)
	assert.Equal(t, "kafka:9092", w.Addr.String())
}

type captureWriter struct{ msgs []Message }

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestWriteJSON(t *testing.T) {
	w := &captureWriter{}
	err := WriteJSON(context.Background(), w, "bet-1", map[string]string{"status": "approved"})

	assert.NoError(t, err)
	if assert.Len(t, w.msgs, 1) {
		assert.Equal(t, "bet-1", string(w.msgs[0].Key))
		assert.JSONEq(t, `{"status":"approved"}`, string(w.msgs[0].Value))
	}

	assert.Error(t, WriteJSON(context.Background(), w, "k", make(chan int)))
}
