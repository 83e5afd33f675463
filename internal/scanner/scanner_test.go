package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"DNAHunter/internal/collector"
	"DNAHunter/internal/model"
)

func testWindow() (time.Time, time.Time) {
	end := time.Date(2025, 12, 18, 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, -3, 0), end
}

func baseOptions(target string) Options {
	start, end := testWindow()
	return Options{
		TargetSeq:  target,
		Period:     model.PeriodDaily,
		Start:      start,
		End:        end,
		RetryDelay: time.Millisecond,
	}
}

func TestScan_EndToEnd(t *testing.T) {
	fetcher := &collector.MockFetcher{
		Universe: []model.Instrument{
			{Code: "A0001", Name: "匹配股", Price: 12.0},
			{Code: "B0002", Name: "反向股", Price: 13.0},
			{Code: "C0003", Name: "停牌股", Price: 14.0},
		},
		Candles: map[string][]model.Candle{
			"A0001": collector.CandlesFromSequence("1010"),
			"B0002": collector.CandlesFromSequence("0101"),
			"C0003": collector.CandlesFromSequence("10"), // below 0.8x target length
		},
	}

	matches, err := NewScanner(fetcher).Scan(context.Background(), baseOptions("1010"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match, got %d", len(matches))
	}
	if matches[0].Code != "A0001" {
		t.Errorf("expected A0001, got %s", matches[0].Code)
	}
	if matches[0].Score != 1.0 {
		t.Errorf("expected score 1.0, got %f", matches[0].Score)
	}
	if matches[0].Sequence != "1010" {
		t.Errorf("unexpected sequence %q", matches[0].Sequence)
	}
}

func TestScan_ThresholdBoundaryExcluded(t *testing.T) {
	// 17 of 20 symbols match contiguously → score 0.85, which must NOT pass
	// the strict > 0.85 threshold.
	target := "11111111111111111111"
	cand := "11111111111111111000"
	fetcher := &collector.MockFetcher{
		Universe: []model.Instrument{{Code: "X0001", Name: "临界股", Price: 10}},
		Candles:  map[string][]model.Candle{"X0001": collector.CandlesFromSequence(cand)},
	}
	_, err := NewScanner(fetcher).Scan(context.Background(), baseOptions(target))
	if !errors.Is(err, ErrNoMatches) {
		t.Fatalf("expected ErrNoMatches for score exactly at threshold, got %v", err)
	}
}

func TestScan_TopKAndSorted(t *testing.T) {
	target := "1111100000"
	universe := make([]model.Instrument, 0, 15)
	candles := make(map[string][]model.Candle, 15)
	for i := 0; i < 15; i++ {
		code := fmt.Sprintf("S%04d", i)
		universe = append(universe, model.Instrument{Code: code, Name: code, Price: 10})
		candles[code] = collector.CandlesFromSequence("1111100000")
	}
	fetcher := &collector.MockFetcher{Universe: universe, Candles: candles}

	matches, err := NewScanner(fetcher).Scan(context.Background(), baseOptions(target))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(matches) > 10 {
		t.Fatalf("expected at most 10 results, got %d", len(matches))
	}
	if !sort.SliceIsSorted(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score }) {
		t.Error("results not sorted by descending score")
	}
}

func TestScan_PinnedCodeSurvivesPriceFilter(t *testing.T) {
	target := "11011"
	fetcher := &collector.MockFetcher{
		Universe: []model.Instrument{
			{Code: "100001", Name: "高价股", Price: 200},
			{Code: "002115", Name: "三变科技", Price: 50}, // outside filter range
		},
		Candles: map[string][]model.Candle{
			"002115": collector.CandlesFromSequence("11011"),
		},
	}
	opts := baseOptions(target)
	opts.UsePriceFilter = true
	opts.PriceMin = 100
	opts.PriceMax = 300
	opts.PinnedCode = "002115"

	matches, err := NewScanner(fetcher).Scan(context.Background(), opts)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(matches) != 1 || matches[0].Code != "002115" {
		t.Fatalf("pinned code not scanned: %+v", matches)
	}
}

func TestScan_UniverseRetryThenAbort(t *testing.T) {
	fetcher := &collector.MockFetcher{
		UniverseErr: errors.New("provider down"),
	}
	opts := baseOptions("10101")
	opts.UniverseRetries = 3

	_, err := NewScanner(fetcher).Scan(context.Background(), opts)
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if fetcher.UniverseCalls != 3 {
		t.Errorf("expected exactly 3 universe attempts, got %d", fetcher.UniverseCalls)
	}
}

func TestScan_UniverseRecoversWithinRetries(t *testing.T) {
	fetcher := &collector.MockFetcher{
		FailUniverseTimes: 2,
		Universe:          []model.Instrument{{Code: "A0001", Name: "A", Price: 10}},
		Candles:           map[string][]model.Candle{"A0001": collector.CandlesFromSequence("10101")},
	}
	opts := baseOptions("10101")

	matches, err := NewScanner(fetcher).Scan(context.Background(), opts)
	if err != nil {
		t.Fatalf("expected recovery on third attempt, got %v", err)
	}
	if fetcher.UniverseCalls != 3 {
		t.Errorf("expected 3 universe attempts, got %d", fetcher.UniverseCalls)
	}
	if len(matches) != 1 {
		t.Errorf("expected 1 match, got %d", len(matches))
	}
}

func TestScan_CandidateFailureDoesNotAbort(t *testing.T) {
	fetcher := &collector.MockFetcher{
		Universe: []model.Instrument{
			{Code: "BAD01", Name: "坏数据", Price: 10},
			{Code: "GOOD1", Name: "好数据", Price: 10},
			{Code: "EMPTY", Name: "无数据", Price: 10},
		},
		Candles: map[string][]model.Candle{
			"GOOD1": collector.CandlesFromSequence("10101"),
		},
		CandlesErr: map[string]error{"BAD01": errors.New("timeout")},
	}

	matches, err := NewScanner(fetcher).Scan(context.Background(), baseOptions("10101"))
	if err != nil {
		t.Fatalf("per-candidate failure must not abort scan: %v", err)
	}
	if len(matches) != 1 || matches[0].Code != "GOOD1" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestScan_InvalidPricesDroppedWithoutFilter(t *testing.T) {
	fetcher := &collector.MockFetcher{
		Universe: []model.Instrument{
			{Code: "SUSP1", Name: "停牌", Price: 0},
			{Code: "LIVE1", Name: "正常", Price: 9.9},
		},
		Candles: map[string][]model.Candle{
			"SUSP1": collector.CandlesFromSequence("10101"),
			"LIVE1": collector.CandlesFromSequence("10101"),
		},
	}

	matches, err := NewScanner(fetcher).Scan(context.Background(), baseOptions("10101"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(matches) != 1 || matches[0].Code != "LIVE1" {
		t.Fatalf("zero-price instrument should be excluded: %+v", matches)
	}
}

func TestScan_ProgressReachesTotal(t *testing.T) {
	universe := make([]model.Instrument, 7)
	candles := make(map[string][]model.Candle, 7)
	for i := range universe {
		code := fmt.Sprintf("P%04d", i)
		universe[i] = model.Instrument{Code: code, Name: code, Price: 10}
		candles[code] = collector.CandlesFromSequence("00000")
	}
	fetcher := &collector.MockFetcher{Universe: universe, Candles: candles}

	var mu sync.Mutex
	var last, total int
	opts := baseOptions("10101")
	opts.Progress = func(done, t int) {
		mu.Lock()
		if done > last {
			last = done
		}
		total = t
		mu.Unlock()
	}

	_, err := NewScanner(fetcher).Scan(context.Background(), opts)
	if !errors.Is(err, ErrNoMatches) {
		t.Fatalf("expected ErrNoMatches, got %v", err)
	}
	if last != 7 || total != 7 {
		t.Errorf("expected progress to reach 7/7, got %d/%d", last, total)
	}
}

func TestScan_BadTargetRejected(t *testing.T) {
	fetcher := &collector.MockFetcher{}
	if _, err := NewScanner(fetcher).Scan(context.Background(), baseOptions("10x01")); err == nil {
		t.Error("expected error for non-binary target")
	}
	if _, err := NewScanner(fetcher).Scan(context.Background(), baseOptions(" \n ")); err == nil {
		t.Error("expected error for empty target")
	}
	if fetcher.UniverseCalls != 0 {
		t.Error("target validation must happen before any fetch")
	}
}
