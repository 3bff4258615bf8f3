package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/sbr-consolidate/internal/record"
)

// ReplaceRescrapeTasks stores the latest completeness check outcome.
func (s *Store) ReplaceRescrapeTasks(ctx context.Context, tasks []record.RescrapeTask) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin rescrape tasks")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM rescrape_task"); err != nil {
		return eris.Wrap(err, "store: clear rescrape_task")
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		"INSERT INTO rescrape_task (query, partition_id, reason, shard, created_at) VALUES (?, ?, ?, ?, ?)"))
	if err != nil {
		return eris.Wrap(err, "store: prepare rescrape insert")
	}
	defer stmt.Close()

	createdAt := now()
	for _, t := range tasks {
		if _, err := stmt.ExecContext(ctx, t.Query, nullIfEmpty(t.Partition), t.Reason, nullIfEmpty(t.Shard), createdAt); err != nil {
			return eris.Wrapf(err, "store: insert rescrape task %q", t.Query)
		}
	}

	return eris.Wrap(tx.Commit(), "store: commit rescrape tasks")
}

// RescrapeTasks returns the stored task list.
func (s *Store) RescrapeTasks(ctx context.Context) ([]record.RescrapeTask, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT query, partition_id, reason, shard FROM rescrape_task ORDER BY reason, partition_id, query")
	if err != nil {
		return nil, eris.Wrap(err, "store: query rescrape_task")
	}
	defer rows.Close()

	var out []record.RescrapeTask
	for rows.Next() {
		var t record.RescrapeTask
		var partition, shard sql.NullString
		if err := rows.Scan(&t.Query, &partition, &t.Reason, &shard); err != nil {
			return nil, eris.Wrap(err, "store: scan rescrape_task")
		}
		t.Partition, t.Shard = partition.String, shard.String
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate rescrape_task")
}
