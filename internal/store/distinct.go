package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sbr-consolidate/internal/record"
)

// identityExpr renders the fifteen identity expressions. With trim set every
// field except the canonical label is whitespace-trimmed first.
func identityExpr(trim bool) []string {
	exprs := make([]string, len(record.Columns))
	for i, col := range record.Columns {
		if trim && col != record.ColValidation {
			exprs[i] = "TRIM(" + col + ")"
		} else {
			exprs[i] = col
		}
	}
	return exprs
}

// DuplicateRow is a raw row that shares its identity tuple with at least
// one other raw row.
type DuplicateRow struct {
	record.Raw
	GroupSize int
}

// DuplicateRows lists every raw row belonging to an identity group larger
// than one. PARTITION BY groups NULLs together.
func (s *Store) DuplicateRows(ctx context.Context, trim bool) ([]DuplicateRow, error) {
	exprs := identityExpr(trim)
	projected := make([]string, len(exprs))
	for i, e := range exprs {
		projected[i] = e + " AS " + record.Columns[i]
	}

	query := fmt.Sprintf(`
		SELECT group_size, shard, %[1]s
		FROM (
			SELECT shard, %[2]s,
			       COUNT(*) OVER (PARTITION BY %[3]s) AS group_size
			FROM raw_listing
		) g
		WHERE group_size > 1
		ORDER BY %[1]s, shard`,
		fieldList(""), strings.Join(projected, ", "), strings.Join(exprs, ", "))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "store: query duplicate rows")
	}
	defer rows.Close()

	var out []DuplicateRow
	for rows.Next() {
		var d DuplicateRow
		var shard string
		if err := scanRaw(rows, &d.Raw, &d.GroupSize, &shard); err != nil {
			return nil, eris.Wrap(err, "store: scan duplicate row")
		}
		d.Shard = shard
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate duplicate rows")
}

// BuildDistinct rebuilds distinct_listing from raw_listing: one row per
// identity tuple, numbered by ROW_NUMBER over the tuple order. Any previous
// validation audit and final set refer to old distinct ids and are cleared
// with it.
func (s *Store) BuildDistinct(ctx context.Context, trim bool) (int, error) {
	exprs := identityExpr(trim)
	projected := make([]string, len(exprs))
	for i, e := range exprs {
		projected[i] = e + " AS " + record.Columns[i]
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "store: begin distinct rebuild")
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM final_listing", "DELETE FROM validation_result", "DELETE FROM distinct_listing"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, eris.Wrapf(err, "store: %s", stmt)
		}
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO distinct_listing (distinct_id, %[1]s)
		SELECT ROW_NUMBER() OVER (ORDER BY %[1]s), %[1]s
		FROM (SELECT DISTINCT %[2]s FROM raw_listing) d`,
		fieldList(""), strings.Join(projected, ", ")))
	if err != nil {
		return 0, eris.Wrap(err, "store: insert distinct rows")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "store: distinct row count")
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "store: commit distinct rebuild")
	}

	zap.L().Debug("store: distinct set rebuilt", zap.Int64("rows", n), zap.Bool("trimmed", trim))
	return int(n), nil
}

// DistinctRecords returns the Distinct Set in distinct_id order.
func (s *Store) DistinctRecords(ctx context.Context) ([]record.Distinct, error) {
	return s.queryDistinct(ctx, fmt.Sprintf(
		"SELECT distinct_id, %s FROM distinct_listing ORDER BY distinct_id", fieldList("")))
}

// ValidatedFound returns distinct rows whose validation verdict is Found.
func (s *Store) ValidatedFound(ctx context.Context) ([]record.Distinct, error) {
	return s.queryDistinct(ctx, s.rebind(fmt.Sprintf(`
		SELECT d.distinct_id, %s
		FROM distinct_listing d
		JOIN validation_result v ON v.distinct_id = d.distinct_id
		WHERE v.outcome = ? AND d.validation = ?
		ORDER BY d.distinct_id`, fieldList("d"))), string(record.Found), string(record.Found))
}

func (s *Store) queryDistinct(ctx context.Context, query string, args ...interface{}) ([]record.Distinct, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: query distinct_listing")
	}
	defer rows.Close()

	var out []record.Distinct
	for rows.Next() {
		var d record.Distinct
		if err := scanRaw(rows, &d.Raw, &d.ID); err != nil {
			return nil, eris.Wrap(err, "store: scan distinct_listing")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate distinct_listing")
}
