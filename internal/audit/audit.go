// Package audit keeps a durable trail of phase activity in SQLite:
// every transition, forced skip, branch initialization, and recovery is
// one row. The trail is an independent subsystem — if it fails to
// initialize, the phase tools keep working and the server logs a warning.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Event kinds recorded in the trail.
const (
	EventInitialized = "initialized"
	EventRecovered   = "recovered"
	EventTransition  = "transition"
	EventForced      = "forced"
)

// Entry is one audit row.
type Entry struct {
	ID            int64  `json:"id"`
	Branch        string `json:"branch"`
	IssueNumber   int    `json:"issue_number"`
	Event         string `json:"event"`
	FromPhase     string `json:"from_phase,omitempty"`
	ToPhase       string `json:"to_phase"`
	SkipReason    string `json:"skip_reason,omitempty"`
	HumanApproval bool   `json:"human_approval"`
	CreatedAt     string `json:"created_at"`
}

// Stats holds aggregate trail statistics.
type Stats struct {
	TotalEntries int            `json:"total_entries"`
	Branches     int            `json:"branches"`
	ByEvent      map[string]int `json:"by_event"`
}

// Config holds audit log configuration.
type Config struct {
	DataDir string
}

// DefaultConfig places the trail next to the JSON stores under .waypoint/.
func DefaultConfig(projectRoot string) Config {
	return Config{DataDir: filepath.Join(projectRoot, ".waypoint")}
}

// Log is the audit trail backed by SQLite.
type Log struct {
	db *sql.DB
}

// New creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func New(cfg Config) (*Log, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "audit.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("audit: pragma %q: %w", p, err)
		}
	}

	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("audit: migration: %w", err)
	}
	return l, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS entries (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			branch         TEXT NOT NULL,
			issue_number   INTEGER NOT NULL,
			event          TEXT NOT NULL,
			from_phase     TEXT NOT NULL DEFAULT '',
			to_phase       TEXT NOT NULL,
			skip_reason    TEXT NOT NULL DEFAULT '',
			human_approval INTEGER NOT NULL DEFAULT 0,
			created_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entries_branch ON entries(branch);
		CREATE INDEX IF NOT EXISTS idx_entries_issue  ON entries(issue_number);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Record appends one entry to the trail.
func (l *Log) Record(e Entry) error {
	createdAt := e.CreatedAt
	if createdAt == "" {
		createdAt = timeNow().UTC().Format(time.RFC3339)
	}
	_, err := l.db.Exec(`
		INSERT INTO entries (branch, issue_number, event, from_phase, to_phase, skip_reason, human_approval, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Branch, e.IssueNumber, e.Event, e.FromPhase, e.ToPhase, e.SkipReason, boolToInt(e.HumanApproval), createdAt,
	)
	if err != nil {
		return fmt.Errorf("audit: record entry: %w", err)
	}
	return nil
}

// ForBranch returns the most recent entries for a branch, newest first.
func (l *Log) ForBranch(branch string, limit int) ([]Entry, error) {
	return l.query(`
		SELECT id, branch, issue_number, event, from_phase, to_phase, skip_reason, human_approval, created_at
		FROM entries WHERE branch = ? ORDER BY id DESC LIMIT ?`,
		branch, normalizeLimit(limit),
	)
}

// ForIssue returns the most recent entries for an issue, newest first.
func (l *Log) ForIssue(issue, limit int) ([]Entry, error) {
	return l.query(`
		SELECT id, branch, issue_number, event, from_phase, to_phase, skip_reason, human_approval, created_at
		FROM entries WHERE issue_number = ? ORDER BY id DESC LIMIT ?`,
		issue, normalizeLimit(limit),
	)
}

// GetStats returns aggregate counts over the whole trail.
func (l *Log) GetStats() (Stats, error) {
	stats := Stats{ByEvent: map[string]int{}}

	row := l.db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT branch) FROM entries`)
	if err := row.Scan(&stats.TotalEntries, &stats.Branches); err != nil {
		return stats, fmt.Errorf("audit: stats: %w", err)
	}

	rows, err := l.db.Query(`SELECT event, COUNT(*) FROM entries GROUP BY event`)
	if err != nil {
		return stats, fmt.Errorf("audit: stats by event: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var event string
		var count int
		if err := rows.Scan(&event, &count); err != nil {
			return stats, fmt.Errorf("audit: stats scan: %w", err)
		}
		stats.ByEvent[event] = count
	}
	return stats, rows.Err()
}

func (l *Log) query(q string, args ...any) ([]Entry, error) {
	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var approval int
		if err := rows.Scan(&e.ID, &e.Branch, &e.IssueNumber, &e.Event, &e.FromPhase, &e.ToPhase, &e.SkipReason, &approval, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		e.HumanApproval = approval != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
