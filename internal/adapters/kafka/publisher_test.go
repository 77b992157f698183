package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func TestPublisher_Notify(t *testing.T) {
	w := &mockWriter{}
	p := &Publisher{writer: w, topic: "signals", logger: ports.NopLogger{}}
	signal := domain.Signal{
		Symbol: "INFY", Kind: domain.SignalExit, Action: domain.Exit, Side: domain.Short,
		Time: time.Date(2025, 12, 5, 4, 15, 0, 0, time.UTC), ExitPrice: 100.8, Reason: domain.ExitStopLoss,
	}

	require.NoError(t, p.Notify(context.Background(), signal))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("INFY"), w.msgs[0].Key)

	var got SignalMessage
	require.NoError(t, sonic.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, ToMessage(signal), got)
	assert.Equal(t, "STOP_LOSS", got.Reason)
	assert.Zero(t, got.EntryPrice)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_WriteFailure(t *testing.T) {
	p := &Publisher{writer: &mockWriter{err: errors.New("leader not available")}, topic: "signals", logger: ports.NopLogger{}}
	err := p.Notify(context.Background(), domain.Signal{Symbol: "INFY"})
	assert.ErrorIs(t, err, ports.ErrDeliveryFailed)
}

func TestNewPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "signals"})
	assert.Error(t, err)
	_, err = NewPublisher(Config{Topic: "signals", Logger: ports.NopLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	p, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "signals", Logger: ports.NopLogger{}})
	require.NoError(t, err)
	assert.Equal(t, "signals", p.topic)
}
