package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"DNAHunter/internal/model"
)

// EastMoneyFetcher implements Fetcher using the Eastmoney public quote API,
// the same backend the A-share data libraries wrap. Candles are requested
// forward-adjusted (qfq) so corporate actions don't break the up/down
// encoding.
type EastMoneyFetcher struct {
	Client    *http.Client
	listBase  string
	klineBase string
}

// NewEastMoneyFetcher creates a new Eastmoney fetcher with optional proxy support.
func NewEastMoneyFetcher(proxyURL string) *EastMoneyFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &EastMoneyFetcher{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		listBase:  "https://82.push2.eastmoney.com",
		klineBase: "https://push2his.eastmoney.com",
	}
}

func (f *EastMoneyFetcher) Name() string { return "eastmoney" }

// emList is the clist response shape. f2 = last price (may be "-" when
// suspended), f12 = code, f14 = name.
type emList struct {
	Data *struct {
		Total int `json:"total"`
		Diff  []struct {
			F2  interface{} `json:"f2"`
			F12 string      `json:"f12"`
			F14 string      `json:"f14"`
		} `json:"diff"`
	} `json:"data"`
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		p, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return p
	default:
		return 0
	}
}

const universePageSize = 1000

// FetchUniverse pages through the full SH+SZ stock list.
func (f *EastMoneyFetcher) FetchUniverse() ([]model.Instrument, error) {
	var universe []model.Instrument
	total := -1

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("pn", strconv.Itoa(page))
		params.Set("pz", strconv.Itoa(universePageSize))
		params.Set("po", "1")
		params.Set("np", "1")
		params.Set("fltt", "2")
		params.Set("invt", "2")
		params.Set("fid", "f3")
		// SZ main + SZ ChiNext + SH main + SH STAR
		params.Set("fs", "m:0 t:6,m:0 t:80,m:1 t:2,m:1 t:23")
		params.Set("fields", "f2,f12,f14")

		u := f.listBase + "/api/qt/clist/get?" + params.Encode()
		body, err := f.get(u)
		if err != nil {
			return nil, fmt.Errorf("universe page %d: %w", page, err)
		}

		var list emList
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("universe decode: %w", err)
		}
		if list.Data == nil || len(list.Data.Diff) == 0 {
			break
		}
		if total < 0 {
			total = list.Data.Total
		}
		for _, d := range list.Data.Diff {
			universe = append(universe, model.Instrument{
				Code:  d.F12,
				Name:  d.F14,
				Price: toFloat(d.F2),
			})
		}
		if total >= 0 && len(universe) >= total {
			break
		}
	}

	if len(universe) == 0 {
		return nil, fmt.Errorf("eastmoney: empty universe")
	}
	return universe, nil
}

// emKline is the kline response shape. Each entry of klines is a CSV row:
// date,open,close,high,low,volume,...
type emKline struct {
	Data *struct {
		Klines []string `json:"klines"`
	} `json:"data"`
}

// secID maps a bare stock code to Eastmoney's market-prefixed form:
// 1.XXXXXX for Shanghai (6xxxxx), 0.XXXXXX otherwise.
func secID(code string) string {
	if strings.HasPrefix(code, "6") {
		return "1." + code
	}
	return "0." + code
}

func kltFor(period model.Period) string {
	if period == model.PeriodWeekly {
		return "102"
	}
	return "101"
}

// FetchCandles returns forward-adjusted candles for one instrument.
func (f *EastMoneyFetcher) FetchCandles(code string, period model.Period, start, end time.Time) ([]model.Candle, error) {
	params := url.Values{}
	params.Set("secid", secID(code))
	params.Set("klt", kltFor(period))
	params.Set("fqt", "1") // forward adjusted
	params.Set("beg", start.Format("20060102"))
	params.Set("end", end.Format("20060102"))
	params.Set("fields1", "f1,f2,f3,f4,f5,f6")
	params.Set("fields2", "f51,f52,f53,f54,f55,f56")

	u := f.klineBase + "/api/qt/stock/kline/get?" + params.Encode()
	body, err := f.get(u)
	if err != nil {
		return nil, fmt.Errorf("kline %s: %w", code, err)
	}

	var kline emKline
	if err := json.Unmarshal(body, &kline); err != nil {
		return nil, fmt.Errorf("kline decode %s: %w", code, err)
	}
	if kline.Data == nil {
		return nil, nil
	}

	candles := make([]model.Candle, 0, len(kline.Data.Klines))
	for _, row := range kline.Data.Klines {
		c, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("kline row %s: %w", code, err)
		}
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}

func parseKlineRow(row string) (model.Candle, error) {
	parts := strings.Split(row, ",")
	if len(parts) < 6 {
		return model.Candle{}, fmt.Errorf("short row %q", row)
	}
	ts, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return model.Candle{}, err
	}
	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return model.Candle{}, err
		}
		vals[i] = v
	}
	return model.Candle{
		Time:   ts,
		Open:   vals[0],
		Close:  vals[1],
		High:   vals[2],
		Low:    vals[3],
		Volume: vals[4],
	}, nil
}

func (f *EastMoneyFetcher) get(u string) ([]byte, error) {
	req, err := http.NewRequest("GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eastmoney fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("eastmoney read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eastmoney: status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
