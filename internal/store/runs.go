package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Run tracks one pipeline execution.
type Run struct {
	ID            string     `json:"run_id"`
	Label         string     `json:"run_label"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Shards        int        `json:"shards"`
	FailedShards  int        `json:"failed_shards"`
	RawRows       int        `json:"raw_rows"`
	DistinctRows  int        `json:"distinct_rows"`
	ValidatedRows int        `json:"validated_rows"`
	FinalRows     int        `json:"final_rows"`
	Notes         string     `json:"notes,omitempty"`
}

// CreateRun registers a new run with a fresh UUID.
func (s *Store) CreateRun(ctx context.Context, label, notes string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Label:     label,
		Notes:     notes,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO pipeline_run (run_id, run_label, started_at, notes)
		VALUES (?, ?, ?, ?)`),
		run.ID, run.Label, run.StartedAt.Format(timeLayout), run.Notes)
	if err != nil {
		return nil, eris.Wrap(err, "store: create run")
	}

	zap.L().Info("store: run created", zap.String("run_id", run.ID), zap.String("label", label))
	return run, nil
}

// CompleteRun stamps the completion time and the run's counters.
func (s *Store) CompleteRun(ctx context.Context, run *Run) error {
	completed := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE pipeline_run
		SET completed_at = ?, shards = ?, failed_shards = ?, raw_rows = ?,
		    distinct_rows = ?, validated_rows = ?, final_rows = ?, notes = ?
		WHERE run_id = ?`),
		completed.Format(timeLayout), run.Shards, run.FailedShards, run.RawRows,
		run.DistinctRows, run.ValidatedRows, run.FinalRows, run.Notes, run.ID)
	if err != nil {
		return eris.Wrapf(err, "store: complete run %s", run.ID)
	}
	run.CompletedAt = &completed
	return nil
}

// LatestRun returns the most recently started run, or nil when none exist.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	var (
		run       Run
		label     sql.NullString
		notes     sql.NullString
		started   string
		completed sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, run_label, started_at, completed_at, shards, failed_shards,
		       raw_rows, distinct_rows, validated_rows, final_rows, notes
		FROM pipeline_run
		ORDER BY started_at DESC
		LIMIT 1`).Scan(&run.ID, &label, &started, &completed, &run.Shards, &run.FailedShards,
		&run.RawRows, &run.DistinctRows, &run.ValidatedRows, &run.FinalRows, &notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: latest run")
	}

	run.Label, run.Notes = label.String, notes.String
	run.StartedAt, _ = time.Parse(timeLayout, started)
	if completed.Valid {
		if t, err := time.Parse(timeLayout, completed.String); err == nil {
			run.CompletedAt = &t
		}
	}
	return &run, nil
}
