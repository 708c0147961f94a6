package models

import "time"

// Bar is a single OHLCV bar in the market timezone. Immutable once produced
// by aggregation.
type Bar struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

// Range returns high minus low.
func (b Bar) Range() float64 { return b.High - b.Low }

// TypicalPrice returns the OHLC average used for VWAP accumulation.
func (b Bar) TypicalPrice() float64 { return (b.Open + b.High + b.Low + b.Close) / 4 }

// Bullish reports whether the bar closed above its open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// OHLC is the price-only view of a bar used in tick payloads.
type OHLC struct {
	Open  float64 `json:"o"`
	High  float64 `json:"h"`
	Low   float64 `json:"l"`
	Close float64 `json:"c"`
}

// PriceView extracts the OHLC fields of a bar.
func (b Bar) PriceView() OHLC {
	return OHLC{Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
}
