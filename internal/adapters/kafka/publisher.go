package kafka

import (
	"context"
	"fmt"
	"time"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
)

// writer is the part of kafka.Writer the publisher needs.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes every signal as a JSON message keyed by symbol.
type Publisher struct {
	writer writer
	topic  string
	logger ports.Logger
}

// Config holds the broker list and topic.
type Config struct {
	Brokers []string
	Topic   string
	Logger  ports.Logger
}

// SignalMessage is the wire form of a signal.
type SignalMessage struct {
	Symbol     string  `json:"symbol"`
	Kind       string  `json:"kind"`
	Action     string  `json:"action"`
	Side       string  `json:"side"`
	Time       string  `json:"time"`
	EntryPrice float64 `json:"entry_price,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
	ExitPrice  float64 `json:"exit_price,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// NewPublisher creates a Kafka publisher for signal events.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Kafka publisher")
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required: %w", ports.ErrConfigurationError)
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Publisher{writer: w, topic: cfg.Topic, logger: cfg.Logger}, nil
}

// ToMessage converts a signal to its wire form.
func ToMessage(s domain.Signal) SignalMessage {
	return SignalMessage{
		Symbol:     s.Symbol,
		Kind:       string(s.Kind),
		Action:     string(s.Action),
		Side:       string(s.Side),
		Time:       s.Time.Format(time.RFC3339),
		EntryPrice: s.EntryPrice,
		StopLoss:   s.StopLoss,
		TakeProfit: s.TakeProfit,
		ExitPrice:  s.ExitPrice,
		Reason:     string(s.Reason),
	}
}

// Notify publishes the signal. Messages of one symbol share a key and so a partition.
func (p *Publisher) Notify(ctx context.Context, signal domain.Signal) error {
	payload, err := sonic.Marshal(ToMessage(signal))
	if err != nil {
		return fmt.Errorf("encoding signal: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(signal.Symbol),
		Value: payload,
		Time:  signal.Time,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error(ctx, err, "Failed to publish signal", map[string]interface{}{"topic": p.topic, "symbol": signal.Symbol})
		return fmt.Errorf("kafka publish: %w: %w", ports.ErrDeliveryFailed, err)
	}
	p.logger.Debug(ctx, "Signal published", map[string]interface{}{"topic": p.topic, "symbol": signal.Symbol})
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
