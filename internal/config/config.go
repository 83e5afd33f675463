package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"DNAHunter/internal/model"
	"DNAHunter/internal/sequence"
)

// defaultTargetSeq is the pattern scanned by scheduled runs until the user
// configures their own.
const defaultTargetSeq = "110000000010011101110111110101001010110111100001100111011101011011"

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"data_source"`
	Scan struct {
		TargetSeq      string  `yaml:"target_seq"`
		Period         string  `yaml:"period"`
		LookbackDays   int     `yaml:"lookback_days"`
		Threshold      float64 `yaml:"threshold"`
		Workers        int     `yaml:"workers"`
		TopK           int     `yaml:"top_k"`
		PinnedCode     string  `yaml:"pinned_code"`
		UsePriceFilter bool    `yaml:"use_price_filter"`
		PriceMin       float64 `yaml:"price_min"`
		PriceMax       float64 `yaml:"price_max"`
	} `yaml:"scan"`
	Schedule struct {
		DailyCron  string `yaml:"daily_cron"`
		WeeklyCron string `yaml:"weekly_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("RELAY_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("RELAY_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("TARGET_SEQ"); v != "" {
		cfg.Scan.TargetSeq = v
	}
	if v := os.Getenv("SCAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.Workers = n
		}
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}

	// Defaults
	if cfg.Scan.TargetSeq == "" {
		cfg.Scan.TargetSeq = defaultTargetSeq
	}
	if cfg.Scan.Period == "" {
		cfg.Scan.Period = string(model.PeriodDaily)
	}
	if cfg.Scan.LookbackDays == 0 {
		cfg.Scan.LookbackDays = 100
	}
	if cfg.Scan.Threshold == 0 {
		cfg.Scan.Threshold = 0.85
	}
	if cfg.Scan.Workers == 0 {
		cfg.Scan.Workers = 5
	}
	if cfg.Scan.TopK == 0 {
		cfg.Scan.TopK = 10
	}
	if cfg.Scan.PinnedCode == "" {
		cfg.Scan.PinnedCode = "002115"
	}
	if cfg.Schedule.DailyCron == "" {
		// Weekdays after the A-share close
		cfg.Schedule.DailyCron = "0 30 15 * * 1-5"
	}
	if cfg.Schedule.WeeklyCron == "" {
		cfg.Schedule.WeeklyCron = "0 0 16 * * 5"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/dnahunter.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	target := sequence.Clean(c.Scan.TargetSeq)
	if err := sequence.Validate(target); err != nil {
		return fmt.Errorf("scan.target_seq: %w", err)
	}
	// Weekly sequences can legitimately be short, so the floor is low.
	if len(target) < 5 {
		return fmt.Errorf("scan.target_seq too short, need at least 5 symbols")
	}
	if !model.Period(c.Scan.Period).Valid() {
		return fmt.Errorf("scan.period must be daily or weekly, got %q", c.Scan.Period)
	}
	if c.Scan.Threshold <= 0 || c.Scan.Threshold > 1 {
		return fmt.Errorf("scan.threshold must be in (0,1]")
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be positive")
	}
	if c.Scan.UsePriceFilter && c.Scan.PriceMin > c.Scan.PriceMax {
		return fmt.Errorf("scan.price_min must not exceed scan.price_max")
	}
	return nil
}
