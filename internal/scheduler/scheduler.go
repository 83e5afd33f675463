package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"DNAHunter/internal/config"
	"DNAHunter/internal/model"
	"DNAHunter/internal/notifier"
	"DNAHunter/internal/recorder"
	"DNAHunter/internal/scanner"
	"DNAHunter/internal/sequence"

	"github.com/robfig/cron/v3"
)

// progressLogEvery controls how often worker completions are logged; one
// line per instrument would flood the log on a full-market scan.
const progressLogEvery = 50

// Scheduler runs scans on cron schedules and on Telegram commands.
type Scheduler struct {
	Cron     *cron.Cron
	Scanner  *scanner.Scanner
	Notifier *notifier.TelegramNotifier
	Recorder recorder.Recorder
	Cfg      *config.Config
	Ctx      context.Context

	// mu guards the scan section of Cfg, which the /seq command mutates
	// while cron jobs read it, and the scanning flag.
	mu       sync.Mutex
	scanning bool
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, sc *scanner.Scanner, tn *notifier.TelegramNotifier, rec recorder.Recorder, cfg *config.Config) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Scanner:  sc,
		Notifier: tn,
		Recorder: rec,
		Cfg:      cfg,
		Ctx:      ctx,
	}
}

// RegisterAll registers the daily and weekly scan tasks.
func (s *Scheduler) RegisterAll(dailyCron, weeklyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, func() { s.runScan("DAILY", model.PeriodDaily) }); err != nil {
		return fmt.Errorf("register daily scan: %w", err)
	}
	if _, err := s.Cron.AddFunc(weeklyCron, func() { s.runScan("WEEKLY", model.PeriodWeekly) }); err != nil {
		return fmt.Errorf("register weekly scan: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunScanNow executes a scan immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunScanNow() {
	s.mu.Lock()
	period := model.Period(s.Cfg.Scan.Period)
	s.mu.Unlock()
	s.runScan("MANUAL", period)
}

// scanWindow derives the date range for a scheduled scan. Weekly scans need
// a far longer window: the same sequence length covers roughly five times
// the calendar span.
func scanWindow(period model.Period, lookbackDays int) (time.Time, time.Time) {
	end := time.Now()
	days := lookbackDays
	if period == model.PeriodWeekly {
		days *= 7
	}
	return end.AddDate(0, 0, -days), end
}

// options builds scanner options from a config snapshot for one run.
// scanned receives the candidate total once workers start reporting.
func (s *Scheduler) options(period model.Period, scanned *atomic.Int64) scanner.Options {
	s.mu.Lock()
	sc := s.Cfg.Scan
	s.mu.Unlock()

	start, end := scanWindow(period, sc.LookbackDays)
	return scanner.Options{
		TargetSeq:      sc.TargetSeq,
		Period:         period,
		Start:          start,
		End:            end,
		UsePriceFilter: sc.UsePriceFilter,
		PriceMin:       sc.PriceMin,
		PriceMax:       sc.PriceMax,
		Threshold:      sc.Threshold,
		Workers:        sc.Workers,
		TopK:           sc.TopK,
		PinnedCode:     sc.PinnedCode,
		Progress: func(done, total int) {
			scanned.Store(int64(total))
			if done%progressLogEvery == 0 || done == total {
				log.Printf("[INFO] scan progress: %d/%d", done, total)
			}
		},
	}
}

// beginScan claims the single scan slot. A full-market scan already keeps a
// worker pool busy against the data provider, so concurrent scans are
// refused rather than queued.
func (s *Scheduler) beginScan() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanning {
		return false
	}
	s.scanning = true
	return true
}

func (s *Scheduler) endScan() {
	s.mu.Lock()
	s.scanning = false
	s.mu.Unlock()
}

func (s *Scheduler) scanInProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

func (s *Scheduler) runScan(trigger string, period model.Period) {
	if !s.beginScan() {
		log.Printf("[WARN] %s scan skipped, another scan is still running", trigger)
		return
	}
	defer s.endScan()

	log.Printf("[INFO] running %s scan", trigger)
	var scanned atomic.Int64
	opts := s.options(period, &scanned)

	target := sequence.Clean(opts.TargetSeq)
	s.trySend(notifier.FormatScanStarted(target, period))

	started := time.Now()
	matches, err := s.Scanner.Scan(s.Ctx, opts)

	rep := &model.ScanReport{
		Trigger:    trigger,
		TargetSeq:  target,
		Period:     period,
		Start:      opts.Start,
		End:        opts.End,
		Scanned:    int(scanned.Load()),
		Duration:   time.Since(started),
		Matches:    matches,
		FinishedAt: time.Now(),
	}

	switch {
	case errors.Is(err, scanner.ErrNoMatches):
		log.Printf("[INFO] %s scan finished with no matches", trigger)
		s.trySend(notifier.FormatNoMatches(rep))
	case err != nil:
		log.Printf("[ERROR] %s scan: %v", trigger, err)
		s.trySend(notifier.FormatScanFailed(err))
		return
	default:
		log.Printf("[INFO] %s scan finished: %d matches in %s", trigger, len(matches), rep.Duration.Round(time.Second))
		s.trySend(notifier.FormatScanReport(rep))
	}

	if err := s.Recorder.RecordScan(rep); err != nil {
		log.Printf("[ERROR] record scan: %v", err)
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch {
	case command == "/scan" || command == "开始扫描":
		if s.scanInProgress() {
			return "扫描进行中, 请稍候"
		}
		go s.RunScanNow()
		return ""
	case command == "/daily" || command == "日线扫描":
		if s.scanInProgress() {
			return "扫描进行中, 请稍候"
		}
		go s.runScan("MANUAL", model.PeriodDaily)
		return ""
	case command == "/weekly" || command == "周线扫描":
		if s.scanInProgress() {
			return "扫描进行中, 请稍候"
		}
		go s.runScan("MANUAL", model.PeriodWeekly)
		return ""
	case strings.HasPrefix(command, "/seq "):
		seq := sequence.Clean(strings.TrimPrefix(command, "/seq "))
		if err := sequence.Validate(seq); err != nil {
			return fmt.Sprintf("序列无效: %v", err)
		}
		if len(seq) < 5 {
			return "序列太短, 至少需要 5 位"
		}
		s.mu.Lock()
		s.Cfg.Scan.TargetSeq = seq
		s.mu.Unlock()
		return fmt.Sprintf("目标序列已更新 (%d 位)", len(seq))
	default:
		return "可用命令:\n• /scan 开始扫描\n• /daily 日线扫描\n• /weekly 周线扫描\n• /seq <01序列> 更新目标序列"
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
