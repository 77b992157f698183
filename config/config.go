package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // exchange time zones on hosts without zoneinfo

	"github.com/joho/godotenv"

	"breakoutBot/internal/adapters/logger"
	"breakoutBot/internal/strategy"
	"breakoutBot/internal/strategy/candles"
	"breakoutBot/internal/strategy/indicators"
	"breakoutBot/internal/strategy/session"
	"breakoutBot/internal/strategy/strategies"
)

// Config holds all application configuration.
type Config struct {
	// Market
	Symbols  []string
	Interval time.Duration
	Location *time.Location

	// Indicators
	EMALength  int
	VolLength  int
	MinCandles int

	// Breakout rules
	VolMultiplier   float64
	RiskReward      float64
	VWAPDistancePct float64
	SLBufferPct     float64

	// Session
	TradeStart      session.Clock
	TradeEnd        session.Clock
	LunchStart      session.Clock
	LunchEnd        session.Clock
	AvoidLunch      bool
	ForcedSquareOff bool
	EvaluateOnClose bool

	// Batch replay overrides; the batch variant avoids lunch and squares off by default
	BacktestAvoidLunch      bool
	BacktestForcedSquareOff bool

	// Memory and storage
	RetentionDays int
	HistoryDays   int
	DBPath        string
	DBKeepDays    int

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string

	// Binance
	APIKey               string
	SecretKey            string
	IsTestnet            bool
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	// Notifications
	TelegramBotToken string
	TelegramChatIDs  []int64
	KafkaBrokers     []string
	KafkaSignalTopic string

	// Pipeline buffers
	LaneBuffer    int
	PersistBuffer int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	cfg.Symbols = getEnvAsList("SYMBOLS", []string{"ETHUSDT"})
	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must list at least one symbol")
	}

	if cfg.Interval, err = candles.ParseInterval(getEnv("INTERVAL", "5m")); err != nil {
		errs = append(errs, fmt.Sprintf("invalid INTERVAL: %v", err))
	}

	tz := getEnv("EXCHANGE_TZ", "Asia/Kolkata")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		errs = append(errs, fmt.Sprintf("invalid EXCHANGE_TZ %q: %v", tz, err))
		cfg.Location = time.UTC
	}

	for _, p := range []struct {
		key string
		def int
		dst *int
	}{
		{"EMA_LENGTH", 200, &cfg.EMALength},
		{"VOL_LENGTH", 20, &cfg.VolLength},
		{"MIN_CANDLES", 210, &cfg.MinCandles},
	} {
		v, err := getEnvAsIntRequired(p.key, p.def)
		if err != nil {
			errs = append(errs, err.Error())
		} else if v <= 0 {
			errs = append(errs, p.key+" must be positive")
		}
		*p.dst = v
	}

	for _, p := range []struct {
		key string
		def float64
		dst *float64
	}{
		{"VOL_MULT", 1.5, &cfg.VolMultiplier},
		{"RISK_REWARD", 1.6, &cfg.RiskReward},
		{"VWAP_DIST_PCT", 0.15, &cfg.VWAPDistancePct},
		{"SL_BUFFER_PCT", 0.08, &cfg.SLBufferPct},
	} {
		v, err := getEnvAsFloatRequired(p.key, p.def)
		if err != nil {
			errs = append(errs, err.Error())
		} else if v < 0 {
			errs = append(errs, p.key+" cannot be negative")
		}
		*p.dst = v
	}
	if cfg.RiskReward <= 0 {
		errs = append(errs, "RISK_REWARD must be positive")
	}

	for _, p := range []struct {
		key, def string
		dst      *session.Clock
	}{
		{"TRADE_START", "09:15", &cfg.TradeStart},
		{"TRADE_END", "15:25", &cfg.TradeEnd},
		{"LUNCH_START", "12:00", &cfg.LunchStart},
		{"LUNCH_END", "13:30", &cfg.LunchEnd},
	} {
		c, err := session.ParseClock(getEnv(p.key, p.def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", p.key, err))
		}
		*p.dst = c
	}
	cfg.AvoidLunch = getEnvAsBool("AVOID_LUNCH", false)
	cfg.ForcedSquareOff = getEnvAsBool("FORCED_SQUARE_OFF", false)
	cfg.EvaluateOnClose = getEnvAsBool("EVALUATE_ON_CLOSE", false)
	cfg.BacktestAvoidLunch = getEnvAsBool("BACKTEST_AVOID_LUNCH", true)
	cfg.BacktestForcedSquareOff = getEnvAsBool("BACKTEST_FORCED_SQUARE_OFF", true)

	if cfg.RetentionDays, err = getEnvAsIntRequired("RETENTION_DAYS", strategy.DefaultRetentionDays); err != nil {
		errs = append(errs, err.Error())
	} else if cfg.RetentionDays < 0 {
		errs = append(errs, "RETENTION_DAYS cannot be negative")
	}
	if cfg.HistoryDays, err = getEnvAsIntRequired("HISTORY_DAYS", 3); err != nil {
		errs = append(errs, err.Error())
	} else if cfg.HistoryDays < 0 {
		errs = append(errs, "HISTORY_DAYS cannot be negative")
	}
	if cfg.DBKeepDays, err = getEnvAsIntRequired("DB_KEEP_DAYS", 30); err != nil {
		errs = append(errs, err.Error())
	} else if cfg.DBKeepDays < 0 {
		errs = append(errs, "DB_KEEP_DAYS cannot be negative")
	}

	cfg.DBPath = getEnv("DB_PATH", "./data/candles.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be text or json")
	}

	// Market data streams are public; keys are only needed for signed endpoints.
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second
	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}

	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	for _, raw := range getEnvAsList("TELEGRAM_CHAT_IDS", nil) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid TELEGRAM_CHAT_IDS entry %q", raw))
			continue
		}
		cfg.TelegramChatIDs = append(cfg.TelegramChatIDs, id)
	}
	if cfg.TelegramBotToken != "" && len(cfg.TelegramChatIDs) == 0 {
		errs = append(errs, "TELEGRAM_CHAT_IDS must be set when TELEGRAM_BOT_TOKEN is set")
	}
	cfg.KafkaBrokers = getEnvAsList("KAFKA_BROKERS", nil)
	cfg.KafkaSignalTopic = getEnv("KAFKA_SIGNAL_TOPIC", "breakout-signals")

	cfg.LaneBuffer = getEnvAsInt("LANE_BUFFER", 1024)
	cfg.PersistBuffer = getEnvAsInt("PERSIST_BUFFER", 256)
	if cfg.LaneBuffer <= 0 || cfg.PersistBuffer <= 0 {
		errs = append(errs, "LANE_BUFFER and PERSIST_BUFFER must be positive")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// StrategyConfig builds the live engine configuration for one symbol.
func (c *Config) StrategyConfig(symbol string) strategy.Config {
	return strategy.Config{
		Symbol:   symbol,
		Interval: c.Interval,
		Location: c.Location,
		Indicators: indicators.Config{
			TrendLength:  c.EMALength,
			VolumeLength: c.VolLength,
			MinCandles:   c.MinCandles,
		},
		Breakout: strategies.BreakoutConfig{
			VolMultiplier:   c.VolMultiplier,
			RiskReward:      c.RiskReward,
			VWAPDistancePct: c.VWAPDistancePct,
			SLBufferPct:     c.SLBufferPct,
			ForcedSquareOff: c.ForcedSquareOff,
			MinCandles:      c.MinCandles,
		},
		Window: session.Window{
			Start:      c.TradeStart,
			End:        c.TradeEnd,
			LunchStart: c.LunchStart,
			LunchEnd:   c.LunchEnd,
			AvoidLunch: c.AvoidLunch,
			Location:   c.Location,
		},
		EvaluateOnClose: c.EvaluateOnClose,
		RetentionDays:   c.RetentionDays,
	}
}

// ReplayConfig is StrategyConfig with the batch session rules applied. The
// retention window stays the live one so both see the same VWAP and PDH/PDL.
func (c *Config) ReplayConfig(symbol string) strategy.Config {
	sc := c.StrategyConfig(symbol)
	sc.Window.AvoidLunch = c.BacktestAvoidLunch
	sc.Breakout.ForcedSquareOff = c.BacktestForcedSquareOff
	return sc
}

// IntervalLabel is the exchange label of the candle interval, e.g. "5m".
func (c *Config) IntervalLabel() string {
	return candles.IntervalLabel(c.Interval)
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
