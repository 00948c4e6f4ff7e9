package models

import (
	"fmt"
	"strings"
	"time"
)

// OptionType is the side of an option contract.
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// ParseOptionType accepts "call" or "put" in any case.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(OptionCall):
		return OptionCall, nil
	case string(OptionPut):
		return OptionPut, nil
	}
	return "", fmt.Errorf("option type %q: %w", s, ErrInvalidInput)
}

// Letter is the OCC side marker.
func (t OptionType) Letter() string {
	if t == OptionPut {
		return "P"
	}
	return "C"
}

// OptionBar is the daily OHLC of one option contract. Missing prices are NaN.
type OptionBar struct {
	Ticker      string     `json:"ticker"`
	Date        time.Time  `json:"date"`
	Symbol      string     `json:"symbol"`
	StrikePrice float64    `json:"strike_price"`
	OptionType  OptionType `json:"option_type"`
	Expiration  time.Time  `json:"expiration_date"`
	Open        float64    `json:"open"`
	High        float64    `json:"high"`
	Low         float64    `json:"low"`
	Close       float64    `json:"close"`
}

// OptionContract identifies one listed contract in a generated chain.
type OptionContract struct {
	Symbol      string     `json:"symbol"`
	Ticker      string     `json:"ticker"`
	StrikePrice float64    `json:"strike_price"`
	OptionType  OptionType `json:"option_type"`
	Expiration  time.Time  `json:"expiration_date"`
}

// TickerDeviation is the stored average daily move of a ticker, in whole dollars.
type TickerDeviation struct {
	Ticker    string    `json:"ticker"`
	Deviation int       `json:"deviation"`
	UpdatedAt time.Time `json:"updated_at"`
}
