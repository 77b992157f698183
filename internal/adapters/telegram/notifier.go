package telegram

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of tgbot.BotAPI the notifier needs.
type sender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

// Notifier sends formatted signal messages to every configured chat.
type Notifier struct {
	bot     sender
	chatIDs []int64
	logger  ports.Logger
}

// Config holds the bot credentials and recipients.
type Config struct {
	Token   string
	ChatIDs []int64
	Logger  ports.Logger
}

// New connects to the Bot API and returns a notifier.
func New(cfg Config) (*Notifier, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Telegram notifier")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is empty: %w", ports.ErrConfigurationError)
	}
	if len(cfg.ChatIDs) == 0 {
		return nil, fmt.Errorf("no telegram chat ids configured: %w", ports.ErrConfigurationError)
	}
	bot, err := tgbot.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connecting telegram bot: %w: %w", ports.ErrConnectionFailed, err)
	}
	cfg.Logger.Info(context.Background(), "Telegram notifier ready", map[string]interface{}{"bot": bot.Self.UserName, "chats": len(cfg.ChatIDs)})
	return newNotifier(bot, cfg.ChatIDs, cfg.Logger), nil
}

func newNotifier(bot sender, chatIDs []int64, logger ports.Logger) *Notifier {
	return &Notifier{bot: bot, chatIDs: chatIDs, logger: logger}
}

// Notify delivers the signal to every chat. A failure for one chat does not stop the others.
func (n *Notifier) Notify(ctx context.Context, signal domain.Signal) error {
	text := FormatSignal(signal)
	var errs []error
	for _, chatID := range n.chatIDs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		msg := tgbot.NewMessage(chatID, text)
		msg.ParseMode = tgbot.ModeMarkdown
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error(ctx, err, "Telegram send failed", map[string]interface{}{"chatID": chatID, "symbol": signal.Symbol})
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		n.logger.Debug(ctx, "Telegram alert sent", map[string]interface{}{"chatID": chatID, "symbol": signal.Symbol})
	}
	if len(errs) > 0 {
		return fmt.Errorf("telegram: %w: %w", ports.ErrDeliveryFailed, errors.Join(errs...))
	}
	return nil
}

// FormatSignal renders a signal as a Markdown message.
func FormatSignal(s domain.Signal) string {
	var b strings.Builder
	if s.IsEntry() {
		emoji := "🚀"
		if s.Action == domain.Sell {
			emoji = "💣"
		}
		fmt.Fprintf(&b, "%s *%s SIGNAL* - `%s`\n\n", emoji, s.Action, s.Symbol)
		fmt.Fprintf(&b, "📍 Entry Price: `%.2f`\n", s.EntryPrice)
		fmt.Fprintf(&b, "🛑 Stop Loss: `%.2f`\n", s.StopLoss)
		fmt.Fprintf(&b, "🎯 Take Profit: `%.2f`\n", s.TakeProfit)
		if risk := math.Abs(s.EntryPrice - s.StopLoss); risk > 0 {
			fmt.Fprintf(&b, "📊 Risk/Reward: `%.2f`\n", math.Abs(s.TakeProfit-s.EntryPrice)/risk)
		}
		fmt.Fprintf(&b, "🕒 Candle: `%s`\n", s.Time.Format("2006-01-02 15:04"))
		return b.String()
	}

	emoji := "❌"
	if s.Reason == domain.ExitTakeProfit {
		emoji = "✅"
	}
	fmt.Fprintf(&b, "%s *EXIT SIGNAL* - `%s`\n\n", emoji, s.Symbol)
	fmt.Fprintf(&b, "📍 Exit Price: `%.2f`\n", s.ExitPrice)
	fmt.Fprintf(&b, "↔️ Side: `%s`\n", s.Side)
	fmt.Fprintf(&b, "📝 Reason: `%s`\n", s.Reason)
	fmt.Fprintf(&b, "🕒 Candle: `%s`\n", s.Time.Format("2006-01-02 15:04"))
	return b.String()
}
