package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"breakoutBot/internal/domain"
)

var candleHeader = []string{"open_time", "symbol", "interval", "open", "high", "low", "close", "volume"}

var tradeHeader = []string{"symbol", "side", "entry_time", "exit_time", "entry_price", "exit_price", "stop_loss", "take_profit", "reason", "pnl"}

// Layouts accepted for time columns besides epoch milliseconds.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCandlesToCSV writes candles with a header row.
func WriteCandlesToCSV(candles []*domain.Candle, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteCandles(file, candles)
}

// WriteCandles writes candles as CSV to w.
func WriteCandles(w io.Writer, candles []*domain.Candle) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(candleHeader); err != nil {
		return err
	}
	for _, c := range candles {
		if err := writer.Write([]string{
			c.OpenTime.Format(time.RFC3339),
			c.Symbol,
			c.Interval,
			formatFloat(c.Open),
			formatFloat(c.High),
			formatFloat(c.Low),
			formatFloat(c.Close),
			formatFloat(c.Volume),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCandlesFromCSV reads a candle table. Columns are matched by header name;
// "timestamp" is accepted for open_time and symbol/interval are optional.
// Times without an offset are read in loc.
func ReadCandlesFromCSV(filename string, loc *time.Location) ([]*domain.Candle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCandles(file, loc)
}

// ReadCandles parses candles from CSV data.
func ReadCandles(r io.Reader, loc *time.Location) ([]*domain.Candle, error) {
	if loc == nil {
		loc = time.UTC
	}
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["open_time"]; !ok {
		if i, ok := cols["timestamp"]; ok {
			cols["open_time"] = i
		}
	}
	for _, required := range []string{"open_time", "open", "high", "low", "close", "volume"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("csv is missing column %q", required)
		}
	}

	var candles []*domain.Candle
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		c := &domain.Candle{}
		if c.OpenTime, err = parseTime(record[cols["open_time"]], loc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for name, dst := range map[string]*float64{
			"open": &c.Open, "high": &c.High, "low": &c.Low, "close": &c.Close, "volume": &c.Volume,
		} {
			if *dst, err = strconv.ParseFloat(strings.TrimSpace(record[cols[name]]), 64); err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, name, err)
			}
		}
		if i, ok := cols["symbol"]; ok {
			c.Symbol = record[i]
		}
		if i, ok := cols["interval"]; ok {
			c.Interval = record[i]
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).In(loc), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// WriteTradesToCSV writes a trade log with a header row.
func WriteTradesToCSV(trades []*domain.Trade, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteTrades(file, trades)
}

// WriteTrades writes trades as CSV to w.
func WriteTrades(w io.Writer, trades []*domain.Trade) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		if err := writer.Write([]string{
			t.Symbol,
			string(t.Side),
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			formatFloat(t.StopLoss),
			formatFloat(t.TakeProfit),
			string(t.Reason),
			formatFloat(t.PNL),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadTradesFromCSV reads a trade log written by WriteTradesToCSV.
func ReadTradesFromCSV(filename string) ([]*domain.Trade, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	trades := make([]*domain.Trade, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(tradeHeader) {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", i+2, len(tradeHeader), len(rec))
		}
		t := &domain.Trade{Symbol: rec[0], Side: domain.Side(rec[1]), Reason: domain.ExitReason(rec[8])}
		if t.EntryTime, err = time.Parse(time.RFC3339, rec[2]); err != nil {
			return nil, fmt.Errorf("line %d: entry_time: %w", i+2, err)
		}
		if t.ExitTime, err = time.Parse(time.RFC3339, rec[3]); err != nil {
			return nil, fmt.Errorf("line %d: exit_time: %w", i+2, err)
		}
		for j, dst := range []*float64{&t.EntryPrice, &t.ExitPrice, &t.StopLoss, &t.TakeProfit, &t.PNL} {
			col := []int{4, 5, 6, 7, 9}[j]
			if *dst, err = strconv.ParseFloat(rec[col], 64); err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", i+2, tradeHeader[col], err)
			}
		}
		trades = append(trades, t)
	}
	return trades, nil
}
