package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const dateLayout = "2006-01-02"

// Repository implements the ports.CandleRepository and ports.TradeRepository interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
	loc    *time.Location
	now    func() time.Time
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath   string
	Logger   ports.Logger
	Location *time.Location // Exchange location used to derive trading dates
}

// Stats summarises the candle store.
type Stats struct {
	TotalCandles int64
	TotalSymbols int64
	FirstDate    string
	LastDate     string
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/candles.db"
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// One writer at a time; the persistence worker and replays share the handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger, loc: loc, now: time.Now}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// open_time is stored as unix milliseconds; date is the trading date in the exchange location.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS candles (
		symbol TEXT NOT NULL,
		open_time INTEGER NOT NULL,
		date TEXT NOT NULL,
		interval TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		PRIMARY KEY (symbol, open_time, interval)
	);

	CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		pnl REAL NOT NULL,
		entry_time INTEGER NOT NULL,
		exit_time INTEGER NOT NULL,
		entry_date TEXT NOT NULL,
		close_reason TEXT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_candles_symbol_date ON candles (symbol, interval, date);
	CREATE INDEX IF NOT EXISTS idx_trade_history_symbol_entry_time ON trade_history (symbol, entry_time);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

func (r *Repository) dateOf(t time.Time) string {
	return t.In(r.loc).Format(dateLayout)
}

// --- CandleRepository Implementation ---

const insertCandle = `
	INSERT OR REPLACE INTO candles (symbol, open_time, date, interval, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// PutCandle stores one candle, replacing any candle with the same key.
func (r *Repository) PutCandle(ctx context.Context, c *domain.Candle) error {
	if _, err := r.db.ExecContext(ctx, insertCandle,
		c.Symbol, c.OpenTime.UnixMilli(), r.dateOf(c.OpenTime), c.Interval,
		c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
		return fmt.Errorf("failed to store candle %s %s: %w: %w", c.Symbol, c.OpenTime.Format(time.RFC3339), ports.ErrQueryFailed, err)
	}
	return nil
}

// PutCandles stores a batch in one transaction.
func (r *Repository) PutCandles(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin candle batch: %w: %w", ports.ErrDBConnection, err)
	}
	stmt, err := tx.PrepareContext(ctx, insertCandle)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare candle insert: %w: %w", ports.ErrQueryFailed, err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx,
			c.Symbol, c.OpenTime.UnixMilli(), r.dateOf(c.OpenTime), c.Interval,
			c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to store candle %s %s: %w: %w", c.Symbol, c.OpenTime.Format(time.RFC3339), ports.ErrQueryFailed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit candle batch: %w: %w", ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Candles stored", map[string]interface{}{"count": len(candles)})
	return nil
}

// GetRange returns candles whose trading date lies in [start, end], ordered by open time.
func (r *Repository) GetRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Candle, error) {
	query := `
	SELECT symbol, interval, open_time, open, high, low, close, volume
	FROM candles
	WHERE symbol = ? AND interval = ?`
	args := []interface{}{symbol, interval}
	if !start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, r.dateOf(start))
	}
	if !end.IsZero() {
		query += ` AND date <= ?`
		args = append(args, r.dateOf(end))
	}
	query += ` ORDER BY open_time ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles for %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	candles := make([]*domain.Candle, 0)
	for rows.Next() {
		c, err := r.scanCandle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candle during GetRange: %w", err)
		}
		candles = append(candles, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candle rows: %w", err)
	}
	return candles, nil
}

// LatestCandle returns the most recent stored candle, or nil when there is none.
func (r *Repository) LatestCandle(ctx context.Context, symbol, interval string) (*domain.Candle, error) {
	const query = `
	SELECT symbol, interval, open_time, open, high, low, close, volume
	FROM candles
	WHERE symbol = ? AND interval = ?
	ORDER BY open_time DESC LIMIT 1`

	c, err := r.scanCandle(r.db.QueryRowContext(ctx, query, symbol, interval))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest candle for %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	return c, nil
}

// PreviousDayHighLow returns the range of the latest stored trading date before date.
// Weekends and holidays are skipped because only dates with candles are considered.
func (r *Repository) PreviousDayHighLow(ctx context.Context, symbol, interval string, date time.Time) (float64, float64, bool, error) {
	const query = `
	SELECT MAX(high), MIN(low)
	FROM candles
	WHERE symbol = ? AND interval = ? AND date = (
		SELECT MAX(date) FROM candles WHERE symbol = ? AND interval = ? AND date < ?
	)`

	var high, low sql.NullFloat64
	day := r.dateOf(date)
	if err := r.db.QueryRowContext(ctx, query, symbol, interval, symbol, interval, day).Scan(&high, &low); err != nil {
		return 0, 0, false, fmt.Errorf("failed to query previous day range for %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	if !high.Valid || !low.Valid {
		return 0, 0, false, nil
	}
	return high.Float64, low.Float64, true, nil
}

// CleanupOldCandles deletes candles dated before today minus keepDays.
func (r *Repository) CleanupOldCandles(ctx context.Context, keepDays int) (int64, error) {
	if keepDays < 0 {
		return 0, fmt.Errorf("keepDays must be non-negative: %w", ports.ErrInvalidRequest)
	}
	cutoff := r.dateOf(r.now().AddDate(0, 0, -keepDays))
	result, err := r.db.ExecContext(ctx, `DELETE FROM candles WHERE date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old candles: %w: %w", ports.ErrQueryFailed, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for cleanup: %w", err)
	}
	r.logger.Info(ctx, "Cleaned up old candles", map[string]interface{}{"deleted": deleted, "before": cutoff})
	return deleted, nil
}

// Stats reports the size and date span of the candle store.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	const query = `SELECT COUNT(*), COUNT(DISTINCT symbol), COALESCE(MIN(date), ''), COALESCE(MAX(date), '') FROM candles`
	var s Stats
	if err := r.db.QueryRowContext(ctx, query).Scan(&s.TotalCandles, &s.TotalSymbols, &s.FirstDate, &s.LastDate); err != nil {
		return Stats{}, fmt.Errorf("failed to query candle stats: %w: %w", ports.ErrQueryFailed, err)
	}
	return s, nil
}

// --- TradeRepository Implementation ---

// CreateTrade saves a new trade record and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trade_history (symbol, side, entry_price, exit_price, stop_loss, take_profit, pnl,
	                           entry_time, exit_time, entry_date, close_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		trade.Symbol, string(trade.Side), trade.EntryPrice, trade.ExitPrice, trade.StopLoss, trade.TakeProfit, trade.PNL,
		trade.EntryTime.UnixMilli(), trade.ExitTime.UnixMilli(), r.dateOf(trade.EntryTime), string(trade.Reason))
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade history for symbol %s: %w: %w", trade.Symbol, ports.ErrQueryFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade history %s: %w", trade.Symbol, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade history created", map[string]interface{}{"tradeID": id, "symbol": trade.Symbol, "pnl": trade.PNL})
	return id, nil
}

// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
func (r *Repository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT id, symbol, side, entry_price, exit_price, stop_loss, take_profit, pnl,
	       entry_time, exit_time, close_reason
	FROM trade_history
	WHERE symbol = ? ORDER BY entry_time DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history for symbol %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := r.scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade history during FindBySymbol: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade history rows: %w", err)
	}
	return trades, nil
}

// CountTodayBySymbol counts the trades entered on the trading date of date.
func (r *Repository) CountTodayBySymbol(ctx context.Context, symbol string, date time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM trade_history WHERE symbol = ? AND entry_date = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, symbol, r.dateOf(date)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count trades today for symbol %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	return count, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scanCandle(s scanner) (*domain.Candle, error) {
	c := &domain.Candle{}
	var openTime int64
	if err := s.Scan(&c.Symbol, &c.Interval, &openTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	c.OpenTime = time.UnixMilli(openTime).In(r.loc)
	return c, nil
}

func (r *Repository) scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side string
	var entryTime, exitTime int64
	var closeReason sql.NullString
	err := s.Scan(
		&t.ID, &t.Symbol, &side, &t.EntryPrice, &t.ExitPrice, &t.StopLoss, &t.TakeProfit, &t.PNL,
		&entryTime, &exitTime, &closeReason)
	if err != nil {
		return nil, err
	}
	t.Side = domain.Side(side)
	t.EntryTime = time.UnixMilli(entryTime).In(r.loc)
	t.ExitTime = time.UnixMilli(exitTime).In(r.loc)
	if closeReason.Valid && closeReason.String != "" {
		t.Reason = domain.ExitReason(closeReason.String)
	} else {
		t.Reason = domain.ExitUnknown
	}
	return t, nil
}
