package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"DNAHunter/internal/model"
)

// RelayFetcher implements Fetcher against a self-hosted data relay, for
// deployments where the public quote API is rate-limited or unreachable.
type RelayFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRelayFetcher creates a new fetcher with optional proxy support.
func NewRelayFetcher(baseURL, apiKey, proxyURL string) *RelayFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &RelayFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *RelayFetcher) Name() string { return "relay" }

type relayInstrument struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type relayCandle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (f *RelayFetcher) FetchUniverse() ([]model.Instrument, error) {
	endpoint := fmt.Sprintf("%s/api/v1/universe", f.BaseURL)
	body, err := f.get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch universe: %w", err)
	}
	var items []relayInstrument
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode universe: %w", err)
	}
	universe := make([]model.Instrument, len(items))
	for i, it := range items {
		universe[i] = model.Instrument{Code: it.Code, Name: it.Name, Price: it.Price}
	}
	return universe, nil
}

func (f *RelayFetcher) FetchCandles(code string, period model.Period, start, end time.Time) ([]model.Candle, error) {
	endpoint := fmt.Sprintf("%s/api/v1/candles?code=%s&period=%s&start=%s&end=%s",
		f.BaseURL, url.QueryEscape(code), period,
		start.Format("20060102"), end.Format("20060102"))
	body, err := f.get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s: %w", code, err)
	}
	var items []relayCandle
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode candles %s: %w", code, err)
	}
	candles := make([]model.Candle, len(items))
	for i, it := range items {
		candles[i] = model.Candle{
			Time:   time.Unix(it.Timestamp, 0),
			Open:   it.Open,
			High:   it.High,
			Low:    it.Low,
			Close:  it.Close,
			Volume: it.Volume,
		}
	}
	// Ensure chronological order
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}

func (f *RelayFetcher) get(endpoint string) ([]byte, error) {
	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
