package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"DNAHunter/internal/collector"
	"DNAHunter/internal/model"
	"DNAHunter/internal/sequence"
)

// ErrNoMatches is returned when a scan completes successfully but nothing
// clears the score threshold. Callers report it as its own outcome instead
// of showing an unexplained empty list.
var ErrNoMatches = errors.New("no matching instruments found")

// Options configures a single scan. Zero values fall back to defaults via
// withDefaults; Threshold and Workers are tunables, not structural constants.
type Options struct {
	TargetSeq string
	Period    model.Period
	Start     time.Time
	End       time.Time

	// Optional inclusive price filter. When UsePriceFilter is false, only
	// non-positive/invalid prices are dropped.
	UsePriceFilter bool
	PriceMin       float64
	PriceMax       float64

	Threshold       float64 // minimum score, exclusive
	Workers         int     // worker-pool width
	TopK            int     // result cap
	PinnedCode      string  // always scanned regardless of price filter
	UniverseRetries int     // universe fetch attempts
	RetryDelay      time.Duration

	// Progress, if set, is called after each instrument completes. It is an
	// observability hook only; completion order carries no meaning.
	Progress func(done, total int)
}

func (o Options) withDefaults() Options {
	if o.Period == "" {
		o.Period = model.PeriodDaily
	}
	if o.Threshold <= 0 {
		o.Threshold = 0.85
	}
	if o.Workers <= 0 {
		o.Workers = 5
	}
	if o.TopK <= 0 {
		o.TopK = 10
	}
	if o.UniverseRetries <= 0 {
		o.UniverseRetries = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	return o
}

// Scanner runs the sequence-matching pipeline against a data provider.
type Scanner struct {
	fetcher collector.Fetcher
}

// NewScanner creates a new Scanner.
func NewScanner(fetcher collector.Fetcher) *Scanner {
	return &Scanner{fetcher: fetcher}
}

// Scan fetches the universe, scores every candidate's up/down encoding
// against the target pattern, and returns the top matches sorted by
// descending score. A failed universe fetch aborts the scan after bounded
// retries; a failed candidate only loses that candidate.
func (s *Scanner) Scan(ctx context.Context, opts Options) ([]model.Match, error) {
	o := opts.withDefaults()

	target := sequence.Clean(o.TargetSeq)
	if err := sequence.Validate(target); err != nil {
		return nil, fmt.Errorf("target sequence: %w", err)
	}
	if !o.Period.Valid() {
		return nil, fmt.Errorf("invalid period %q", o.Period)
	}

	universe, err := s.fetchUniverseWithRetry(ctx, o)
	if err != nil {
		return nil, err
	}

	candidates := filterByPrice(universe, o)
	candidates = ensurePinned(candidates, universe, o.PinnedCode)
	total := len(candidates)
	log.Printf("[INFO] scanning %d candidates (period=%s, target len=%d)", total, o.Period, len(target))

	jobs := make(chan model.Instrument)
	results := make(chan model.Match, total)
	var done atomic.Int64
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for inst := range jobs {
			m, err := s.scanOne(inst, target, o)
			if err != nil {
				// A single bad candidate never aborts the scan.
				log.Printf("[WARN] candidate %s: %v", inst.Code, err)
			} else if m != nil {
				results <- *m
			}
			n := done.Add(1)
			if o.Progress != nil {
				o.Progress(int(n), total)
			}
		}
	}

	wg.Add(o.Workers)
	for i := 0; i < o.Workers; i++ {
		go worker()
	}

	for _, inst := range candidates {
		jobs <- inst
	}
	close(jobs)
	wg.Wait()
	close(results)

	var matches []model.Match
	for m := range results {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > o.TopK {
		matches = matches[:o.TopK]
	}
	if len(matches) == 0 {
		return nil, ErrNoMatches
	}
	return matches, nil
}

// scanOne fetches and scores a single candidate. It returns (nil, nil) for a
// genuine non-match or empty history, and an error only for fetch/decode
// failures, so the two are distinguishable in logs.
func (s *Scanner) scanOne(inst model.Instrument, target string, o Options) (*model.Match, error) {
	candles, err := s.fetcher.FetchCandles(inst.Code, o.Period, o.Start, o.End)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) == 0 {
		return nil, nil
	}
	seq := sequence.Encode(candles)
	score := sequence.Similarity(target, seq)
	if score <= o.Threshold {
		return nil, nil
	}
	return &model.Match{
		Code:     inst.Code,
		Name:     inst.Name,
		Price:    inst.Price,
		Score:    score,
		Sequence: seq,
	}, nil
}

// fetchUniverseWithRetry fetches the universe snapshot with a fixed backoff
// between attempts. The scan cannot proceed without it.
func (s *Scanner) fetchUniverseWithRetry(ctx context.Context, o Options) ([]model.Instrument, error) {
	var lastErr error
	for attempt := 1; attempt <= o.UniverseRetries; attempt++ {
		universe, err := s.fetcher.FetchUniverse()
		if err == nil {
			return universe, nil
		}
		lastErr = err
		log.Printf("[WARN] universe fetch failed (attempt %d/%d): %v", attempt, o.UniverseRetries, err)
		if attempt < o.UniverseRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.RetryDelay):
			}
		}
	}
	return nil, fmt.Errorf("fetch universe: all %d attempts failed: %w", o.UniverseRetries, lastErr)
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

func filterByPrice(universe []model.Instrument, o Options) []model.Instrument {
	out := make([]model.Instrument, 0, len(universe))
	for _, inst := range universe {
		if !validPrice(inst.Price) {
			continue
		}
		if o.UsePriceFilter && (inst.Price < o.PriceMin || inst.Price > o.PriceMax) {
			continue
		}
		out = append(out, inst)
	}
	return out
}

// ensurePinned appends the pinned verification code when the filter dropped
// it, deduplicated by code. It must still carry a valid price in the
// unfiltered universe.
func ensurePinned(candidates, universe []model.Instrument, pinned string) []model.Instrument {
	if pinned == "" {
		return candidates
	}
	for _, inst := range candidates {
		if inst.Code == pinned {
			return candidates
		}
	}
	for _, inst := range universe {
		if inst.Code == pinned && validPrice(inst.Price) {
			return append(candidates, inst)
		}
	}
	return candidates
}
