package repository

import (
	"context"
	"fmt"
	"time"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	pkgch "CoveredCall/pkg/clickhouse"
	applogger "CoveredCall/pkg/logger"
)

const journalChunkSize = 2000

// JournalSchema returns the idempotent DDL for the journal tables in database db.
func JournalSchema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.backtest_trades (
			run_id String,
			recorded_at DateTime,
			ticker LowCardinality(String),
			date Date,
			option_type LowCardinality(String),
			strike_price Float64,
			opening_price Float64,
			closing_price Float64,
			high_price Float64,
			outcome LowCardinality(String),
			trade_profit Float64
		) ENGINE = MergeTree ORDER BY (ticker, date, run_id)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.predictions (
			recorded_at DateTime,
			ticker LowCardinality(String),
			option_type LowCardinality(String),
			target_date String,
			prediction UInt8,
			prob_down Float64,
			prob_up Float64,
			deviation Float64,
			base_deviation Float64,
			reference_price Float64,
			strike_price Int32
		) ENGINE = MergeTree ORDER BY (ticker, recorded_at)`, db),
	}
}

var (
	tradeColumns = []string{
		"run_id", "recorded_at", "ticker", "date", "option_type", "strike_price",
		"opening_price", "closing_price", "high_price", "outcome", "trade_profit",
	}
	predictionColumns = []string{
		"recorded_at", "ticker", "option_type", "target_date", "prediction", "prob_down",
		"prob_up", "deviation", "base_deviation", "reference_price", "strike_price",
	}
)

// CHJournal implements Journal by appending native blocks to ClickHouse MergeTree tables.
type CHJournal struct {
	ch *pkgch.Client
	l  *applogger.Logger
}

func NewCHJournal(ch *pkgch.Client) *CHJournal {
	return &CHJournal{ch: ch, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (j *CHJournal) SetLogger(l *applogger.Logger) { j.l = l }

func (j *CHJournal) RecordTrades(ctx context.Context, runID string, trades []models.BacktestTradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	start := time.Now()
	rows := tradeRows(runID, start.UTC(), trades)
	for from := 0; from < len(rows); from += journalChunkSize {
		to := from + journalChunkSize
		if to > len(rows) {
			to = len(rows)
		}
		if err := j.ch.InsertRows(ctx, "backtest_trades", tradeColumns, rows[from:to]); err != nil {
			j.l.Error("clickhouse record_trades error",
				applogger.String("run_id", runID),
				applogger.Int("rows", to-from),
				applogger.Error(err),
			)
			return fmt.Errorf("record trades: %w", err)
		}
	}
	j.l.Debug("clickhouse record_trades ok",
		applogger.String("run_id", runID),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// tradeRows lays trades out in tradeColumns order with the Go types the native protocol expects.
func tradeRows(runID string, now time.Time, trades []models.BacktestTradeRecord) [][]interface{} {
	rows := make([][]interface{}, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, []interface{}{
			runID, now, t.Ticker, t.Date, string(t.OptionType), t.StrikePrice,
			t.OpeningPriceCents, t.ClosingPriceCents, t.HighPriceCents, string(t.Outcome), t.TradeProfit,
		})
	}
	return rows
}

func predictionRow(now time.Time, p *models.PredictionResult) []interface{} {
	return []interface{}{
		now, p.Ticker, p.OptionType, p.Date, uint8(p.PredictedClass),
		p.Probabilities[0], p.Probabilities[1], p.Deviation, p.BaseDeviation, p.ReferencePrice, int32(p.StrikePrice),
	}
}

func (j *CHJournal) RecordPrediction(ctx context.Context, p *models.PredictionResult) error {
	if p == nil {
		return nil
	}
	err := j.ch.InsertRows(ctx, "predictions", predictionColumns, [][]interface{}{predictionRow(time.Now().UTC(), p)})
	if err != nil {
		j.l.Error("clickhouse record_prediction error", applogger.String("ticker", p.Ticker), applogger.Error(err))
		return fmt.Errorf("record prediction: %w", err)
	}
	return nil
}

// NoopJournal discards everything; used when ClickHouse is disabled.
type NoopJournal struct{}

func (NoopJournal) RecordTrades(context.Context, string, []models.BacktestTradeRecord) error {
	return nil
}
func (NoopJournal) RecordPrediction(context.Context, *models.PredictionResult) error { return nil }

var (
	_ domrepo.Journal = (*CHJournal)(nil)
	_ domrepo.Journal = NoopJournal{}
)
