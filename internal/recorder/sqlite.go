package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"DNAHunter/internal/model"
)

// SQLiteRecorder persists scan history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so ad-hoc result queries don't block the bot's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			trigger_type  TEXT,
			target_seq    TEXT,
			period        TEXT,
			start_date    TEXT,
			end_date      TEXT,
			scanned       INTEGER,
			match_count   INTEGER,
			duration_ms   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON scan_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS scan_matches (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id   INTEGER NOT NULL REFERENCES scan_runs(id),
			rank     INTEGER,
			code     TEXT,
			name     TEXT,
			price    REAL,
			score    REAL,
			sequence TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_run ON scan_matches(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordScan inserts the run row and its matches in one transaction.
func (r *SQLiteRecorder) RecordScan(rep *model.ScanReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO scan_runs
		(timestamp, trigger_type, target_seq, period, start_date, end_date,
		 scanned, match_count, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), rep.Trigger, rep.TargetSeq, string(rep.Period),
		rep.Start.Format("2006-01-02"), rep.End.Format("2006-01-02"),
		rep.Scanned, len(rep.Matches), rep.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	for i, m := range rep.Matches {
		if _, err := tx.Exec(`INSERT INTO scan_matches
			(run_id, rank, code, name, price, score, sequence)
			VALUES (?,?,?,?,?,?,?)`,
			runID, i+1, m.Code, m.Name, m.Price, m.Score, m.Sequence,
		); err != nil {
			return fmt.Errorf("insert match %s: %w", m.Code, err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
