// Package notify holds the notifiers that do not talk to an outside service.
package notify

import (
	"context"
	"errors"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"
)

// LogNotifier writes signals to the application log.
type LogNotifier struct {
	logger ports.Logger
}

func NewLogNotifier(logger ports.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, signal domain.Signal) error {
	fields := map[string]interface{}{
		"symbol": signal.Symbol,
		"action": string(signal.Action),
		"side":   string(signal.Side),
		"time":   signal.Time,
	}
	if signal.IsEntry() {
		fields["entry"] = signal.EntryPrice
		fields["stopLoss"] = signal.StopLoss
		fields["takeProfit"] = signal.TakeProfit
	} else {
		fields["exit"] = signal.ExitPrice
		fields["reason"] = string(signal.Reason)
	}
	n.logger.Info(ctx, "Signal", fields)
	return nil
}

// Multi fans a signal out to several notifiers and joins their errors.
type Multi []ports.SignalNotifier

func (m Multi) Notify(ctx context.Context, signal domain.Signal) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, signal); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
