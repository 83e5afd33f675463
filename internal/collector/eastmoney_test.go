package collector

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"DNAHunter/internal/model"
)

func TestEastMoney_FetchUniverse(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/api/qt/clist/get" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if calls == 1 {
			w.Write([]byte(`{"data":{"total":3,"diff":[
				{"f2":12.5,"f12":"000001","f14":"平安银行"},
				{"f2":"-","f12":"000002","f14":"万科A"}
			]}}`))
			return
		}
		w.Write([]byte(`{"data":{"total":3,"diff":[
			{"f2":8.8,"f12":"600000","f14":"浦发银行"}
		]}}`))
	}))
	defer srv.Close()

	f := &EastMoneyFetcher{Client: srv.Client(), listBase: srv.URL, klineBase: srv.URL}
	universe, err := f.FetchUniverse()
	if err != nil {
		t.Fatalf("FetchUniverse: %v", err)
	}
	if len(universe) != 3 {
		t.Fatalf("expected 3 instruments, got %d", len(universe))
	}
	if universe[0].Code != "000001" || universe[0].Price != 12.5 {
		t.Errorf("unexpected first instrument: %+v", universe[0])
	}
	// Suspended instrument decodes with zero price, filtering is the scanner's job.
	if universe[1].Price != 0 {
		t.Errorf("expected 0 price for suspended instrument, got %f", universe[1].Price)
	}
}

func TestEastMoney_FetchCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("secid"); got != "1.600000" {
			t.Errorf("expected secid 1.600000, got %s", got)
		}
		if got := r.URL.Query().Get("klt"); got != "102" {
			t.Errorf("expected weekly klt 102, got %s", got)
		}
		if got := r.URL.Query().Get("fqt"); got != "1" {
			t.Errorf("expected fqt 1, got %s", got)
		}
		w.Write([]byte(`{"data":{"klines":[
			"2025-09-12,10.00,10.50,10.60,9.90,12345",
			"2025-09-05,10.40,10.10,10.70,10.00,23456"
		]}}`))
	}))
	defer srv.Close()

	f := &EastMoneyFetcher{Client: srv.Client(), listBase: srv.URL, klineBase: srv.URL}
	candles, err := f.FetchCandles("600000", model.PeriodWeekly,
		time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	// Rows arrive newest-first here; fetcher must sort chronologically.
	if !candles[0].Time.Before(candles[1].Time) {
		t.Error("candles not sorted chronologically")
	}
	if candles[1].Open != 10.0 || candles[1].Close != 10.5 {
		t.Errorf("unexpected candle values: %+v", candles[1])
	}
}

func TestEastMoney_EmptyKlineData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":null}`))
	}))
	defer srv.Close()

	f := &EastMoneyFetcher{Client: srv.Client(), listBase: srv.URL, klineBase: srv.URL}
	candles, err := f.FetchCandles("000001", model.PeriodDaily, time.Now().AddDate(0, -3, 0), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 0 {
		t.Errorf("expected no candles, got %d", len(candles))
	}
}

func TestSecID(t *testing.T) {
	if got := secID("600519"); got != "1.600519" {
		t.Errorf("expected 1.600519, got %s", got)
	}
	if got := secID("002115"); got != "0.002115" {
		t.Errorf("expected 0.002115, got %s", got)
	}
}
