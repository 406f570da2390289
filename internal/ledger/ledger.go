// Package ledger keeps a SQLite table of final guard verdicts.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/sceneguard/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS verdicts (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id      TEXT NOT NULL,
    scene           TEXT NOT NULL,
    source          TEXT NOT NULL,
    policy_hash     TEXT NOT NULL,
    length          INTEGER NOT NULL,
    terminated      INTEGER NOT NULL,
    reason          TEXT NOT NULL,
    end_reached     INTEGER NOT NULL,
    violations      INTEGER NOT NULL,
    critical        INTEGER NOT NULL,
    kinds           TEXT NOT NULL,
    recorded_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS verdicts_scene ON verdicts (scene, recorded_at);
`

// Entry is one stored verdict.
type Entry struct {
	ID         int64          `json:"id"`
	SessionID  string         `json:"session_id"`
	Scene      string         `json:"scene"`
	Source     string         `json:"source"`
	PolicyHash string         `json:"policy_hash"`
	Length     int            `json:"length"`
	Terminated bool           `json:"terminated"`
	Reason     string         `json:"reason,omitempty"`
	EndReached bool           `json:"end_reached"`
	Violations int            `json:"violations"`
	Critical   int            `json:"critical"`
	Kinds      map[string]int `json:"kinds,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// Filter narrows List.
type Filter struct {
	Scene          string
	TerminatedOnly bool
	Limit          int
}

// Summary aggregates every stored verdict.
type Summary struct {
	Sessions   int `json:"sessions"`
	Terminated int `json:"terminated"`
	EndReached int `json:"end_reached"`
	Violations int `json:"violations"`
	Critical   int `json:"critical"`
}

// Ledger persists verdicts in SQLite.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath returns ~/.sceneguard/ledger.db, or "" if home is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sceneguard", "ledger.db")
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0750); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// Close closes the database handle.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// EntryFor summarizes a guard result.
func EntryFor(sessionID, scene, source, policyHash string, r model.GuardResult) Entry {
	e := Entry{
		SessionID:  sessionID,
		Scene:      scene,
		Source:     source,
		PolicyHash: policyHash,
		Length:     len([]rune(r.Content)),
		Terminated: r.WasTerminated,
		Reason:     r.TerminationReason,
		EndReached: r.EndConditionReached,
		Violations: len(r.Violations),
		Kinds:      map[string]int{},
	}
	for _, v := range r.Violations {
		e.Kinds[string(v.Kind)]++
		if v.Severity == model.SeverityCritical {
			e.Critical++
		}
	}
	return e
}

// RecordResult stores the summary of a finished session.
func (l *Ledger) RecordResult(ctx context.Context, sessionID, scene, source, policyHash string, r model.GuardResult) (int64, error) {
	return l.Record(ctx, EntryFor(sessionID, scene, source, policyHash, r))
}

// Record inserts one entry and returns its row id.
func (l *Ledger) Record(ctx context.Context, e Entry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if e.SessionID == "" {
		return 0, fmt.Errorf("session id is required")
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = l.now()
	}
	kinds, err := json.Marshal(e.Kinds)
	if err != nil {
		return 0, fmt.Errorf("encode kinds: %w", err)
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO verdicts (
		   session_id, scene, source, policy_hash, length, terminated, reason,
		   end_reached, violations, critical, kinds, recorded_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Scene, e.Source, e.PolicyHash, e.Length, e.Terminated, e.Reason,
		e.EndReached, e.Violations, e.Critical, string(kinds), e.RecordedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert verdict: %w", err)
	}
	return res.LastInsertId()
}

// List returns entries newest first.
func (l *Ledger) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, session_id, scene, source, policy_hash, length, terminated, reason,
	                 end_reached, violations, critical, kinds, recorded_at
	          FROM verdicts WHERE 1=1`
	var args []any
	if f.Scene != "" {
		query += ` AND scene = ?`
		args = append(args, f.Scene)
	}
	if f.TerminatedOnly {
		query += ` AND terminated = 1`
	}
	query += ` ORDER BY recorded_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			kinds    string
			recorded int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Scene, &e.Source, &e.PolicyHash, &e.Length,
			&e.Terminated, &e.Reason, &e.EndReached, &e.Violations, &e.Critical, &kinds, &recorded); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		if err := json.Unmarshal([]byte(kinds), &e.Kinds); err != nil {
			return nil, fmt.Errorf("decode kinds of verdict %d: %w", e.ID, err)
		}
		e.RecordedAt = time.UnixMilli(recorded).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summarize aggregates all stored verdicts.
func (l *Ledger) Summarize(ctx context.Context) (Summary, error) {
	var s Summary
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(terminated), 0),
		        COALESCE(SUM(end_reached), 0),
		        COALESCE(SUM(violations), 0),
		        COALESCE(SUM(critical), 0)
		 FROM verdicts`).Scan(&s.Sessions, &s.Terminated, &s.EndReached, &s.Violations, &s.Critical)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize verdicts: %w", err)
	}
	return s, nil
}
