package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"simulator/pkg/batch"
	"simulator/pkg/engine"
	"simulator/pkg/eval"
	"simulator/pkg/logx"
)

func statusFromString(s string) engine.Status {
	if s == string(engine.StatusFailed) {
		return engine.StatusFailed
	}
	return engine.StatusCompleted
}

func evalStatusFromString(s string) eval.EvaluationStatus {
	switch s {
	case string(eval.EvalSuccess):
		return eval.EvalSuccess
	case string(eval.EvalFailed):
		return eval.EvalFailed
	default:
		return ""
	}
}

// Archive persists batch records in SQLite so results survive process
// restarts and can be queried after the in-memory job store is cleaned.
type Archive struct {
	db     *sql.DB
	logger *logx.Logger
}

// OpenArchive opens (and if needed creates) the archive database.
// Use ":memory:" for tests.
func OpenArchive(path string) (*Archive, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open results database: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	a := &Archive{db: db, logger: logx.NewLogger("archive")}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) migrate() error {
	_, err := a.db.Exec(`
	CREATE TABLE IF NOT EXISTS batch_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		scenario_index INTEGER NOT NULL,
		scenario TEXT NOT NULL,
		session_id TEXT,
		status TEXT NOT NULL,
		score INTEGER NOT NULL,
		comment TEXT,
		total_turns INTEGER NOT NULL,
		duration_seconds REAL NOT NULL,
		evaluation_status TEXT,
		error TEXT,
		transcript TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(batch_id, scenario_index)
	);
	CREATE INDEX IF NOT EXISTS idx_batch_records_batch ON batch_records(batch_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate results schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// StoreBatch inserts all records of a finished batch in one transaction.
func (a *Archive) StoreBatch(ctx context.Context, batchID string, records []batch.Record) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO batch_records
		(batch_id, scenario_index, scenario, session_id, status, score, comment,
		 total_turns, duration_seconds, evaluation_status, error, transcript)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]
		transcript, err := json.Marshal(rec.Turns)
		if err != nil {
			return fmt.Errorf("marshal transcript for scenario %d: %w", rec.ScenarioIndex, err)
		}
		if _, err := stmt.ExecContext(ctx,
			batchID, rec.ScenarioIndex, rec.Scenario, rec.SessionID, string(rec.Status),
			rec.Score, rec.Comment, rec.TotalTurns, rec.DurationSeconds,
			string(rec.EvaluationStatus), rec.Error, string(transcript),
		); err != nil {
			return fmt.Errorf("insert record %d: %w", rec.ScenarioIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}

	a.logger.Info("archived batch %s: %d records", batchID, len(records))
	return nil
}

// LoadBatch returns the archived records of a batch ordered by scenario
// index. A missing batch returns an empty slice.
func (a *Archive) LoadBatch(ctx context.Context, batchID string) ([]batch.Record, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT scenario_index, scenario, session_id, status, score, comment,
		       total_turns, duration_seconds, evaluation_status, error, transcript
		FROM batch_records WHERE batch_id = ? ORDER BY scenario_index`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query archived batch: %w", err)
	}
	defer rows.Close()

	var records []batch.Record
	for rows.Next() {
		var rec batch.Record
		var status, evalStatus, transcript string
		if err := rows.Scan(&rec.ScenarioIndex, &rec.Scenario, &rec.SessionID, &status,
			&rec.Score, &rec.Comment, &rec.TotalTurns, &rec.DurationSeconds,
			&evalStatus, &rec.Error, &transcript); err != nil {
			return nil, fmt.Errorf("scan archived record: %w", err)
		}
		rec.Status = statusFromString(status)
		rec.EvaluationStatus = evalStatusFromString(evalStatus)
		if transcript != "" {
			if err := json.Unmarshal([]byte(transcript), &rec.Turns); err != nil {
				return nil, fmt.Errorf("unmarshal transcript: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListBatches returns archived batch ids with record counts, newest first.
func (a *Archive) ListBatches(ctx context.Context) (map[string]int, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT batch_id, COUNT(*) FROM batch_records GROUP BY batch_id`)
	if err != nil {
		return nil, fmt.Errorf("list archived batches: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan batch count: %w", err)
		}
		out[id] = count
	}
	return out, rows.Err()
}

// Prune deletes archived records older than maxAge.
func (a *Archive) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM batch_records WHERE created_at < ?`,
		time.Now().Add(-maxAge).UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, fmt.Errorf("prune archive: %w", err)
	}
	return res.RowsAffected()
}
