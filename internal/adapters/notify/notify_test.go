package notify

import (
	"context"
	"errors"
	"testing"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"

	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	got []domain.Signal
	err error
}

func (r *recordingNotifier) Notify(ctx context.Context, s domain.Signal) error {
	r.got = append(r.got, s)
	return r.err
}

type captureLogger struct {
	ports.NopLogger
	msgs   []string
	fields []map[string]interface{}
}

func (c *captureLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	c.msgs = append(c.msgs, msg)
	c.fields = append(c.fields, fields...)
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: ports.ErrDeliveryFailed}
	other := &recordingNotifier{err: errors.New("other")}

	err := Multi{failing, ok, other}.Notify(context.Background(), domain.Signal{Symbol: "INFY"})
	assert.ErrorIs(t, err, ports.ErrDeliveryFailed)
	assert.ErrorContains(t, err, "other")
	assert.Len(t, ok.got, 1)
	assert.Len(t, other.got, 1)

	assert.NoError(t, Multi{ok}.Notify(context.Background(), domain.Signal{}))
}

func TestLogNotifier(t *testing.T) {
	logger := &captureLogger{}
	n := NewLogNotifier(logger)

	assert.NoError(t, n.Notify(context.Background(), domain.Signal{Symbol: "INFY", Kind: domain.SignalEntry, Action: domain.Buy, EntryPrice: 102}))
	assert.NoError(t, n.Notify(context.Background(), domain.Signal{Symbol: "INFY", Kind: domain.SignalExit, Action: domain.Exit, Reason: domain.ExitStopLoss}))

	assert.Equal(t, []string{"Signal", "Signal"}, logger.msgs)
	assert.Equal(t, 102.0, logger.fields[0]["entry"])
	assert.Equal(t, "STOP_LOSS", logger.fields[1]["reason"])
}
