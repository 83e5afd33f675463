package model

import "time"

// Candle represents a single candlestick bar.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Period is the candle granularity used for a scan.
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// Valid reports whether p is a supported granularity.
func (p Period) Valid() bool {
	return p == PeriodDaily || p == PeriodWeekly
}
