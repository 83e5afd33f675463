package collector

import (
	"time"

	"DNAHunter/internal/model"
)

// Fetcher defines the interface for the market data provider.
type Fetcher interface {
	// FetchUniverse returns the full tradable-instrument snapshot.
	FetchUniverse() ([]model.Instrument, error)
	// FetchCandles returns adjusted historical candles for one instrument
	// over [start, end] at the given granularity.
	FetchCandles(code string, period model.Period, start, end time.Time) ([]model.Candle, error)
	Name() string
}
