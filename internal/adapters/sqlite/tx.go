package sqlite

import (
	"context"
	"database/sql"

	"specbook/internal/domain"
)

// logTx groups the writes that must land together
type logTx struct {
	tx *sql.Tx
}

func (l *ScanLog) beginTx(ctx context.Context) (*logTx, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &logTx{tx: tx}, nil
}

// upsertRun inserts or replaces a run row
func (t *logTx) upsertRun(run *domain.ScanRun) error {
	var finished int64
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UnixNano()
	}
	_, err := t.tx.Exec(`
		INSERT INTO runs (id, kind, object_id, state, started_at, finished_at,
			entries, rejected, unresolved, input_tokens, output_tokens, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			finished_at = excluded.finished_at,
			entries = excluded.entries,
			rejected = excluded.rejected,
			unresolved = excluded.unresolved,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			error = excluded.error
	`, run.ID, string(run.Kind), run.ObjectID, string(run.State), run.StartedAt.UnixNano(), finished,
		run.Entries, run.Rejected, run.Unresolved,
		run.TokenUsage.InputTokens, run.TokenUsage.OutputTokens, run.Error)
	return err
}

// upsertDiagnostics stores the verbatim provider exchange of a run
func (t *logTx) upsertDiagnostics(runID string, d domain.Diagnostics) error {
	_, err := t.tx.Exec(`
		INSERT OR REPLACE INTO diagnostics (run_id, system_prompt, user_prompt, raw_response)
		VALUES (?, ?, ?, ?)
	`, runID, d.SystemPrompt, d.UserPrompt, d.RawResponse)
	return err
}

// deleteRunsBeyond removes all runs except the newest keep
func (t *logTx) deleteRunsBeyond(keep int) (int64, error) {
	if _, err := t.tx.Exec(`
		DELETE FROM diagnostics WHERE run_id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC LIMIT ?
		)
	`, keep); err != nil {
		return 0, err
	}
	res, err := t.tx.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Commit commits the transaction
func (t *logTx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction
func (t *logTx) Rollback() error {
	return t.tx.Rollback()
}
