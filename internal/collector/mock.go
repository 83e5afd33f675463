package collector

import (
	"fmt"
	"time"

	"DNAHunter/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Universe    []model.Instrument
	Candles     map[string][]model.Candle // keyed by instrument code
	UniverseErr error
	CandlesErr  map[string]error

	// FailUniverseTimes makes the first N FetchUniverse calls fail, for
	// exercising retry behavior.
	FailUniverseTimes int
	UniverseCalls     int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchUniverse() ([]model.Instrument, error) {
	m.UniverseCalls++
	if m.UniverseCalls <= m.FailUniverseTimes {
		return nil, fmt.Errorf("mock universe failure %d", m.UniverseCalls)
	}
	if m.UniverseErr != nil {
		return nil, m.UniverseErr
	}
	return m.Universe, nil
}

func (m *MockFetcher) FetchCandles(code string, _ model.Period, _, _ time.Time) ([]model.Candle, error) {
	if err, ok := m.CandlesErr[code]; ok {
		return nil, err
	}
	return m.Candles[code], nil
}

// CandlesFromSequence builds synthetic candles whose up/down encoding equals
// the given binary string. Handy for tests that care only about the pattern.
func CandlesFromSequence(seq string) []model.Candle {
	candles := make([]model.Candle, len(seq))
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < len(seq); i++ {
		open, close := 10.0, 10.5
		if seq[i] == '0' {
			close = 9.5
		}
		candles[i] = model.Candle{
			Time:  base.AddDate(0, 0, i),
			Open:  open,
			High:  11,
			Low:   9,
			Close: close,
		}
	}
	return candles
}
