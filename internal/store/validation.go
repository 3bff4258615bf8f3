package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/sbr-consolidate/internal/record"
)

// ReplaceValidation swaps the validation audit for a new set of verdicts.
func (s *Store) ReplaceValidation(ctx context.Context, verdicts []record.Verdict) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin validation")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM validation_result"); err != nil {
		return eris.Wrap(err, "store: clear validation_result")
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO validation_result (distinct_id, similarity, geo, outcome, reason)
		VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return eris.Wrap(err, "store: prepare validation insert")
	}
	defer stmt.Close()

	for _, v := range verdicts {
		if _, err := stmt.ExecContext(ctx, v.DistinctID, v.Similarity, v.Geo, string(v.Outcome), nullIfEmpty(v.Reason)); err != nil {
			return eris.Wrapf(err, "store: insert verdict for distinct row %d", v.DistinctID)
		}
	}

	return eris.Wrap(tx.Commit(), "store: commit validation")
}

// Verdicts returns the validation audit in distinct_id order.
func (s *Store) Verdicts(ctx context.Context) ([]record.Verdict, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT distinct_id, similarity, geo, outcome, reason FROM validation_result ORDER BY distinct_id")
	if err != nil {
		return nil, eris.Wrap(err, "store: query validation_result")
	}
	defer rows.Close()

	var out []record.Verdict
	for rows.Next() {
		var v record.Verdict
		var outcome string
		var reason sql.NullString
		if err := rows.Scan(&v.DistinctID, &v.Similarity, &v.Geo, &outcome, &reason); err != nil {
			return nil, eris.Wrap(err, "store: scan validation_result")
		}
		v.Outcome, err = record.ParseLabel(outcome)
		if err != nil {
			return nil, eris.Wrapf(err, "store: distinct row %d", v.DistinctID)
		}
		v.Reason = reason.String
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate validation_result")
}
