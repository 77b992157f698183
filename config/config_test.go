package config

import (
	"os"
	"testing"
	"time"

	"breakoutBot/internal/adapters/logger"
	"breakoutBot/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp moves into an empty directory so a local .env is not picked up.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdirTemp(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.Equal(t, "Asia/Kolkata", cfg.Location.String())
	assert.Equal(t, 200, cfg.EMALength)
	assert.Equal(t, 210, cfg.MinCandles)
	assert.Equal(t, 1.6, cfg.RiskReward)
	assert.Equal(t, "09:15", cfg.TradeStart.String())
	assert.Equal(t, "15:25", cfg.TradeEnd.String())
	assert.False(t, cfg.AvoidLunch)
	assert.True(t, cfg.BacktestAvoidLunch)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "5m", cfg.IntervalLabel())
}

func TestLoadConfig_Overrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SYMBOLS", "INFY, TCS ,")
	t.Setenv("INTERVAL", "15m")
	t.Setenv("EXCHANGE_TZ", "UTC")
	t.Setenv("VOL_MULT", "2")
	t.Setenv("TRADE_START", "0930")
	t.Setenv("EVALUATE_ON_CLOSE", "true")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_IDS", "1,-1002")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"INFY", "TCS"}, cfg.Symbols)
	assert.Equal(t, 15*time.Minute, cfg.Interval)
	assert.Equal(t, 2.0, cfg.VolMultiplier)
	assert.Equal(t, "09:30", cfg.TradeStart.String())
	assert.True(t, cfg.EvaluateOnClose)
	assert.Equal(t, []int64{1, -1002}, cfg.TelegramChatIDs)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfig_CollectsErrors(t *testing.T) {
	chdirTemp(t)
	t.Setenv("INTERVAL", "7x")
	t.Setenv("EMA_LENGTH", "abc")
	t.Setenv("RISK_REWARD", "0")
	t.Setenv("TRADE_END", "25:99")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")

	_, err := LoadConfig()
	require.Error(t, err)
	for _, want := range []string{"INTERVAL", "EMA_LENGTH", "RISK_REWARD", "TRADE_END", "TELEGRAM_CHAT_IDS"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestStrategyAndReplayConfig(t *testing.T) {
	chdirTemp(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)

	live := cfg.StrategyConfig("INFY")
	require.NoError(t, live.Validate())
	assert.Equal(t, "INFY", live.Symbol)
	assert.Equal(t, 5, live.RetentionDays)
	assert.False(t, live.Window.AvoidLunch)
	assert.False(t, live.Breakout.ForcedSquareOff)

	replay := cfg.ReplayConfig("INFY")
	assert.True(t, replay.Window.AvoidLunch)
	assert.True(t, replay.Breakout.ForcedSquareOff)
	assert.Equal(t, live.RetentionDays, replay.RetentionDays, "replay keeps the live window")

	_, err = strategy.New(replay, nil)
	assert.Error(t, err)
}
