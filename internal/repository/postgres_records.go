package repository

import (
	"math"
	"time"

	"CoveredCall/internal/domain/models"
)

// StockRecord is a row of stock_data.
type StockRecord struct {
	ID             uint      `gorm:"primaryKey"`
	Ticker         string    `gorm:"size:16;not null;uniqueIndex:uidx_stock_ticker_date"`
	Date           time.Time `gorm:"type:date;not null;uniqueIndex:uidx_stock_ticker_date"`
	OpenPrice      float64
	ClosePrice     float64
	HighPrice      float64
	LowPrice       float64
	MACD           *float64 `gorm:"column:macd"`
	Signal         *float64
	Histogram      *float64
	RSI            *float64 `gorm:"column:rsi"`
	BollingerUpper *float64
	BollingerLower *float64
	SMA            *float64 `gorm:"column:sma"`
	EMA12          *float64 `gorm:"column:ema_12"`
	EMA26          *float64 `gorm:"column:ema_26"`
	UpdatedAt      time.Time
}

func (StockRecord) TableName() string { return "stock_data" }

// OptionRecord is a row of options_data.
type OptionRecord struct {
	ID          uint      `gorm:"primaryKey"`
	Ticker      string    `gorm:"size:16;not null;uniqueIndex:uidx_option_contract_day"`
	Date        time.Time `gorm:"type:date;not null;uniqueIndex:uidx_option_contract_day"`
	Symbol      string    `gorm:"size:32;not null"`
	StrikePrice float64   `gorm:"not null;uniqueIndex:uidx_option_contract_day"`
	OptionType  string    `gorm:"size:4;not null;uniqueIndex:uidx_option_contract_day"`
	Expiration  time.Time `gorm:"column:expiration_date;type:date;not null;uniqueIndex:uidx_option_contract_day"`
	Open        *float64
	High        *float64
	Low         *float64
	Close       *float64
}

func (OptionRecord) TableName() string { return "options_data" }

// DeviationRecord is a row of stock_deviations.
type DeviationRecord struct {
	Ticker    string `gorm:"primaryKey;size:16"`
	Deviation int    `gorm:"not null"`
	UpdatedAt time.Time
}

func (DeviationRecord) TableName() string { return "stock_deviations" }

// PostgresModels lists the tables to migrate.
func PostgresModels() []interface{} {
	return []interface{}{&StockRecord{}, &OptionRecord{}, &DeviationRecord{}}
}

// nullable maps NaN and Inf to SQL NULL.
func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func toStockRecord(ticker string, r models.IndicatorRow) StockRecord {
	return StockRecord{
		Ticker:         ticker,
		Date:           models.DateOnly(r.Date),
		OpenPrice:      r.Open,
		ClosePrice:     r.Close,
		HighPrice:      r.High,
		LowPrice:       r.Low,
		MACD:           nullable(r.MACD),
		Signal:         nullable(r.Signal),
		Histogram:      nullable(r.Histogram),
		RSI:            nullable(r.RSI),
		BollingerUpper: nullable(r.BollingerUpper),
		BollingerLower: nullable(r.BollingerLower),
		SMA:            nullable(r.SMA),
		EMA12:          nullable(r.EMA12),
		EMA26:          nullable(r.EMA26),
	}
}

func (s StockRecord) row() models.IndicatorRow {
	return models.IndicatorRow{
		PriceBar: models.PriceBar{
			Ticker: s.Ticker,
			Date:   models.DateOnly(s.Date),
			Open:   s.OpenPrice,
			Close:  s.ClosePrice,
			High:   s.HighPrice,
			Low:    s.LowPrice,
		},
		MACD:           orNaN(s.MACD),
		Signal:         orNaN(s.Signal),
		Histogram:      orNaN(s.Histogram),
		RSI:            orNaN(s.RSI),
		BollingerUpper: orNaN(s.BollingerUpper),
		BollingerLower: orNaN(s.BollingerLower),
		SMA:            orNaN(s.SMA),
		EMA12:          orNaN(s.EMA12),
		EMA26:          orNaN(s.EMA26),
	}
}

func toOptionRecord(b models.OptionBar) OptionRecord {
	return OptionRecord{
		Ticker:      b.Ticker,
		Date:        models.DateOnly(b.Date),
		Symbol:      b.Symbol,
		StrikePrice: b.StrikePrice,
		OptionType:  string(b.OptionType),
		Expiration:  models.DateOnly(b.Expiration),
		Open:        nullable(b.Open),
		High:        nullable(b.High),
		Low:         nullable(b.Low),
		Close:       nullable(b.Close),
	}
}

func (o OptionRecord) bar() models.OptionBar {
	return models.OptionBar{
		Ticker:      o.Ticker,
		Date:        models.DateOnly(o.Date),
		Symbol:      o.Symbol,
		StrikePrice: o.StrikePrice,
		OptionType:  models.OptionType(o.OptionType),
		Expiration:  models.DateOnly(o.Expiration),
		Open:        orNaN(o.Open),
		High:        orNaN(o.High),
		Low:         orNaN(o.Low),
		Close:       orNaN(o.Close),
	}
}
