package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
)

// MemoryPriceHistory implements PriceHistory in process, for tests and storage.backend=memory.
type MemoryPriceHistory struct {
	mu   sync.RWMutex
	rows map[string]map[time.Time]models.IndicatorRow
}

func NewMemoryPriceHistory() *MemoryPriceHistory {
	return &MemoryPriceHistory{rows: make(map[string]map[time.Time]models.IndicatorRow)}
}

func (m *MemoryPriceHistory) sorted(ticker string) []models.IndicatorRow {
	byDate := m.rows[ticker]
	out := make([]models.IndicatorRow, 0, len(byDate))
	for _, r := range byDate {
		out = append(out, r)
	}
	models.SortRows(out)
	return out
}

func (m *MemoryPriceHistory) ReadRecent(_ context.Context, ticker string, limit int) ([]models.IndicatorRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.sorted(ticker)
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (m *MemoryPriceHistory) ReadRange(_ context.Context, ticker string, start, end time.Time) ([]models.IndicatorRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start, end = models.DateOnly(start), models.DateOnly(end)
	var out []models.IndicatorRow
	for _, r := range m.sorted(ticker) {
		if !r.Date.Before(start) && !r.Date.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryPriceHistory) ReadAll(_ context.Context, ticker string) ([]models.IndicatorRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted(ticker), nil
}

func (m *MemoryPriceHistory) WriteUpsert(_ context.Context, ticker string, rows []models.IndicatorRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDate, ok := m.rows[ticker]
	if !ok {
		byDate = make(map[time.Time]models.IndicatorRow)
		m.rows[ticker] = byDate
	}
	for _, r := range rows {
		r.Ticker = ticker
		r.Date = models.DateOnly(r.Date)
		byDate[r.Date] = r
	}
	return nil
}

func (m *MemoryPriceHistory) LatestDate(ctx context.Context, ticker string) (time.Time, error) {
	rows, _ := m.ReadAll(ctx, ticker)
	if len(rows) == 0 {
		return time.Time{}, fmt.Errorf("stock data %s: %w", ticker, models.ErrNotFound)
	}
	return rows[len(rows)-1].Date, nil
}

func (m *MemoryPriceHistory) EarliestDate(ctx context.Context, ticker string) (time.Time, error) {
	rows, _ := m.ReadAll(ctx, ticker)
	if len(rows) == 0 {
		return time.Time{}, fmt.Errorf("stock data %s: %w", ticker, models.ErrNotFound)
	}
	return rows[0].Date, nil
}

func (m *MemoryPriceHistory) OpenPrice(_ context.Context, ticker string, date time.Time) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rows[ticker][models.DateOnly(date)]
	if !ok {
		return 0, fmt.Errorf("open price %s: %w", ticker, models.ErrNotFound)
	}
	return r.Open, nil
}

type optionKey struct {
	ticker     string
	date       time.Time
	strike     float64
	optionType models.OptionType
	expiration time.Time
}

// MemoryOptionQuotes implements OptionQuoteStore in process.
type MemoryOptionQuotes struct {
	mu   sync.RWMutex
	bars map[optionKey]models.OptionBar
}

func NewMemoryOptionQuotes() *MemoryOptionQuotes {
	return &MemoryOptionQuotes{bars: make(map[optionKey]models.OptionBar)}
}

func keyOf(b models.OptionBar) optionKey {
	return optionKey{b.Ticker, models.DateOnly(b.Date), b.StrikePrice, b.OptionType, models.DateOnly(b.Expiration)}
}

func (m *MemoryOptionQuotes) GetBar(_ context.Context, ticker string, date time.Time, strike float64, optionType models.OptionType, expiration time.Time) (models.OptionBar, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bars[optionKey{ticker, models.DateOnly(date), strike, optionType, models.DateOnly(expiration)}]
	return b, ok, nil
}

func (m *MemoryOptionQuotes) SaveBars(_ context.Context, bars []models.OptionBar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bars {
		b.Date = models.DateOnly(b.Date)
		b.Expiration = models.DateOnly(b.Expiration)
		m.bars[keyOf(b)] = b
	}
	return nil
}

func (m *MemoryOptionQuotes) LatestDate(_ context.Context, ticker string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var dates []time.Time
	for k := range m.bars {
		if k.ticker == ticker {
			dates = append(dates, k.date)
		}
	}
	if len(dates) == 0 {
		return time.Time{}, fmt.Errorf("options data %s: %w", ticker, models.ErrNotFound)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates[len(dates)-1], nil
}

// MemoryDeviations implements DeviationStore in process.
type MemoryDeviations struct {
	mu sync.RWMutex
	m  map[string]models.TickerDeviation
}

func NewMemoryDeviations() *MemoryDeviations {
	return &MemoryDeviations{m: make(map[string]models.TickerDeviation)}
}

func (d *MemoryDeviations) Upsert(_ context.Context, dev models.TickerDeviation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m[dev.Ticker] = dev
	return nil
}

func (d *MemoryDeviations) Get(_ context.Context, ticker string) (models.TickerDeviation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dev, ok := d.m[ticker]
	if !ok {
		return models.TickerDeviation{}, fmt.Errorf("deviation %s: %w", ticker, models.ErrNotFound)
	}
	return dev, nil
}

var (
	_ domrepo.PriceHistory     = (*MemoryPriceHistory)(nil)
	_ domrepo.OptionQuoteStore = (*MemoryOptionQuotes)(nil)
	_ domrepo.DeviationStore   = (*MemoryDeviations)(nil)
)
