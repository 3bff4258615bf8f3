package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sbr-consolidate/internal/record"
)

// Staging is exclusive, transactional access to stg_listing for one shard's
// load → normalise → merge cycle. Nothing is visible outside until Commit.
type Staging struct {
	store *Store
	tx    *sql.Tx
}

// BeginStaging opens the transaction that owns the staging table.
func (s *Store) BeginStaging(ctx context.Context) (*Staging, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "store: begin staging")
	}
	return &Staging{store: s, tx: tx}, nil
}

// Clear empties the staging table.
func (st *Staging) Clear(ctx context.Context) error {
	if _, err := st.tx.ExecContext(ctx, "DELETE FROM stg_listing"); err != nil {
		return eris.Wrap(err, "store: clear staging")
	}
	return nil
}

// Load appends every row of the shard verbatim.
func (st *Staging) Load(ctx context.Context, shard *record.Shard) (int, error) {
	stmt, err := st.tx.PrepareContext(ctx, st.store.rebind(fmt.Sprintf(
		"INSERT INTO stg_listing (shard_row, %s) VALUES (%s)",
		fieldList(""), placeholders(record.FieldCount+1))))
	if err != nil {
		return 0, eris.Wrap(err, "store: prepare staging insert")
	}
	defer stmt.Close()

	for i, row := range shard.Rows {
		args := append([]interface{}{i + 1}, fieldArgs(row)...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return i, eris.Wrapf(err, "store: stage row %d of %s", i+1, shard.Name)
		}
	}
	return len(shard.Rows), nil
}

// NormalizeLabels rewrites the validation column of every staged row with
// the canonical label produced by fn. It returns the number of rows whose
// stored text changed.
func (st *Staging) NormalizeLabels(ctx context.Context, fn func(*string) record.Label) (int, error) {
	type staged struct {
		row   int
		label sql.NullString
	}

	rows, err := st.tx.QueryContext(ctx, "SELECT shard_row, validation FROM stg_listing ORDER BY shard_row")
	if err != nil {
		return 0, eris.Wrap(err, "store: read staged labels")
	}
	var pending []staged
	for rows.Next() {
		var s staged
		if err := rows.Scan(&s.row, &s.label); err != nil {
			rows.Close()
			return 0, eris.Wrap(err, "store: scan staged label")
		}
		pending = append(pending, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "store: iterate staged labels")
	}

	stmt, err := st.tx.PrepareContext(ctx, st.store.rebind(
		"UPDATE stg_listing SET validation = ? WHERE shard_row = ?"))
	if err != nil {
		return 0, eris.Wrap(err, "store: prepare label update")
	}
	defer stmt.Close()

	changed := 0
	for _, p := range pending {
		canonical := string(fn(fromNull(p.label)))
		if p.label.Valid && p.label.String == canonical {
			continue
		}
		if _, err := stmt.ExecContext(ctx, canonical, p.row); err != nil {
			return changed, eris.Wrapf(err, "store: update label of staged row %d", p.row)
		}
		changed++
	}
	return changed, nil
}

// Rows returns the staged rows in load order.
func (st *Staging) Rows(ctx context.Context) ([]record.Raw, error) {
	rows, err := st.tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM stg_listing ORDER BY shard_row", fieldList("")))
	if err != nil {
		return nil, eris.Wrap(err, "store: query staging")
	}
	defer rows.Close()

	var out []record.Raw
	for rows.Next() {
		var r record.Raw
		if err := scanRaw(rows, &r); err != nil {
			return nil, eris.Wrap(err, "store: scan staging")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate staging")
}

// Merge appends staging onto raw_listing, records the shard and clears
// staging. It returns the number of rows appended.
func (st *Staging) Merge(ctx context.Context, runID, shardName string) (int64, error) {
	res, err := st.tx.ExecContext(ctx, st.store.rebind(fmt.Sprintf(
		`INSERT INTO raw_listing (run_id, shard, %[1]s)
		SELECT CAST(? AS TEXT), CAST(? AS TEXT), %[1]s FROM stg_listing ORDER BY shard_row`,
		fieldList(""))), runID, shardName)
	if err != nil {
		return 0, eris.Wrapf(err, "store: merge staging of %s", shardName)
	}
	merged, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "store: merged row count")
	}

	if _, err := st.tx.ExecContext(ctx, st.store.rebind(
		"INSERT INTO shard_ingest (run_id, shard, row_count, ingested_at) VALUES (?, ?, ?, ?)"),
		runID, shardName, merged, now()); err != nil {
		return 0, eris.Wrapf(err, "store: record ingest of %s", shardName)
	}

	if err := st.Clear(ctx); err != nil {
		return 0, err
	}
	return merged, nil
}

// Commit publishes the merge.
func (st *Staging) Commit() error {
	return eris.Wrap(st.tx.Commit(), "store: commit staging")
}

// Rollback discards everything since BeginStaging. Safe after Commit.
func (st *Staging) Rollback() error {
	err := st.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return eris.Wrap(err, "store: rollback staging")
}
