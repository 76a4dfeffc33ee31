package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"specbook/internal/domain"
	"specbook/internal/ports"

	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// ScanLog implements ports.ScanLog using SQLite
type ScanLog struct {
	db        *sql.DB
	workspace string
	dbPath    string
}

// Ensure ScanLog implements ports.ScanLog
var _ ports.ScanLog = (*ScanLog)(nil)

// NewScanLog creates a new SQLite scan log
func NewScanLog() *ScanLog {
	return &ScanLog{}
}

// Open initializes the scan log for the given workspace
func (l *ScanLog) Open(workspace string) error {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace: %w", err)
	}

	l.workspace = abs
	l.dbPath = databasePath(abs)

	if err := os.MkdirAll(filepath.Dir(l.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	// WAL lets the TUI read history while a CLI scan writes
	db, err := sql.Open("sqlite", l.dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	l.db = db

	if err := l.migrate(); err != nil {
		db.Close()
		return fmt.Errorf("failed to setup database: %w", err)
	}

	return nil
}

// Close closes the database connection
func (l *ScanLog) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Path returns the database file location
func (l *ScanLog) Path() string {
	return l.dbPath
}

func (l *ScanLog) migrate() error {
	_, err := l.db.Exec(`
		PRAGMA synchronous = NORMAL;
		PRAGMA busy_timeout = 5000;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	// Older layouts are dropped; history is diagnostic data only
	if l.schemaVersion() != schemaVersion {
		if _, err := l.db.Exec(`
			DROP TABLE IF EXISTS diagnostics;
			DROP TABLE IF EXISTS runs;
		`); err != nil {
			return err
		}
	}

	_, err = l.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			object_id TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0,
			entries INTEGER NOT NULL DEFAULT 0,
			rejected INTEGER NOT NULL DEFAULT 0,
			unresolved INTEGER NOT NULL DEFAULT 0,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS diagnostics (
			run_id TEXT PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
			system_prompt TEXT NOT NULL,
			user_prompt TEXT NOT NULL,
			raw_response TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`)
	if err != nil {
		return err
	}

	return l.updateMeta()
}

func (l *ScanLog) schemaVersion() string {
	var version string
	_ = l.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version)
	return version
}

// updateMeta updates the schema version and workspace hash
func (l *ScanLog) updateMeta() error {
	const upsert = "INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)"
	if _, err := l.db.Exec(upsert, "schema_version", schemaVersion); err != nil {
		return err
	}
	_, err := l.db.Exec(upsert, "workspace", l.workspace)
	return err
}

// databasePath returns the path for the SQLite database
func databasePath(workspace string) string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, "specbook", hashWorkspace(workspace)+".db")
}

// hashWorkspace returns a short hash of the workspace path
func hashWorkspace(workspace string) string {
	h := sha256.Sum256([]byte(workspace))
	return hex.EncodeToString(h[:8])
}

// StartRun inserts a running scan
func (l *ScanLog) StartRun(ctx context.Context, run *domain.ScanRun) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, object_id, state, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, string(run.Kind), run.ObjectID, string(run.State), run.StartedAt.UnixNano())
	return err
}

// FinishRun stores the outcome of a run and its diagnostics atomically
func (l *ScanLog) FinishRun(ctx context.Context, run *domain.ScanRun) error {
	tx, err := l.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.upsertRun(run); err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}
	if err := tx.upsertDiagnostics(run.ID, run.Diagnostics); err != nil {
		return fmt.Errorf("failed to store diagnostics: %w", err)
	}
	return tx.Commit()
}

const runColumns = `
	r.id, r.kind, r.object_id, r.state, r.started_at, r.finished_at,
	r.entries, r.rejected, r.unresolved, r.input_tokens, r.output_tokens, r.error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner, extra ...any) (domain.ScanRun, error) {
	var (
		run               domain.ScanRun
		kind, state       string
		started, finished int64
	)
	dest := []any{
		&run.ID, &kind, &run.ObjectID, &state, &started, &finished,
		&run.Entries, &run.Rejected, &run.Unresolved,
		&run.TokenUsage.InputTokens, &run.TokenUsage.OutputTokens, &run.Error,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return run, err
	}

	run.Kind = domain.ScanKind(kind)
	run.State = domain.ScanState(state)
	run.StartedAt = time.Unix(0, started).UTC()
	if finished > 0 {
		run.FinishedAt = time.Unix(0, finished).UTC()
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first, without diagnostics
func (l *ScanLog) ListRuns(ctx context.Context, limit int) ([]domain.ScanRun, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs r
		ORDER BY r.started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.ScanRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetRun returns one run with its diagnostics, or nil when unknown.
// A unique id prefix is accepted.
func (l *ScanLog) GetRun(ctx context.Context, id string) (*domain.ScanRun, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("run id is required")
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT `+runColumns+`,
			COALESCE(d.system_prompt, ''), COALESCE(d.user_prompt, ''), COALESCE(d.raw_response, '')
		FROM runs r
		LEFT JOIN diagnostics d ON d.run_id = r.id
		WHERE substr(r.id, 1, length(?)) = ?
		ORDER BY (r.id = ?) DESC
		LIMIT 2
	`, id, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []domain.ScanRun
	for rows.Next() {
		var d domain.Diagnostics
		run, err := scanRun(rows, &d.SystemPrompt, &d.UserPrompt, &d.RawResponse)
		if err != nil {
			return nil, err
		}
		run.Diagnostics = d
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(found) == 0:
		return nil, nil
	case found[0].ID == id || len(found) == 1:
		return &found[0], nil
	default:
		return nil, errors.New("ambiguous run id prefix: " + id)
	}
}

// Prune deletes all but the newest keep runs
func (l *ScanLog) Prune(ctx context.Context, keep int) (int64, error) {
	tx, err := l.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n, err := tx.deleteRunsBeyond(keep)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
