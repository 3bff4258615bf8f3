package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sbr-consolidate/internal/db"
	"github.com/sbr-consolidate/internal/record"
)

// timeLayout sorts lexicographically, which LatestRun relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the relational backing of the pipeline: staging, cumulative raw
// set, distinct set, validation audit, final set and run bookkeeping.
type Store struct {
	db      *sql.DB
	dialect db.Dialect
}

// New wraps an open connection.
func New(conn *db.Connection) *Store {
	return &Store{db: conn.DB, dialect: conn.Dialect}
}

// DB exposes the underlying handle for diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) rebind(query string) string {
	return db.Rebind(s.dialect, query)
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "store: migrate")
		}
	}
	zap.L().Debug("store: schema ready", zap.String("dialect", string(s.dialect)))
	return nil
}

// Counts summarises table sizes.
type Counts struct {
	Staging   int `json:"staging"`
	Raw       int `json:"raw"`
	Distinct  int `json:"distinct"`
	Validated int `json:"validated"`
	Found     int `json:"found"`
	Final     int `json:"final"`
	Rescrape  int `json:"rescrape_tasks"`
}

// Counts returns the current row count of every pipeline table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	targets := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM stg_listing", &c.Staging},
		{"SELECT COUNT(*) FROM raw_listing", &c.Raw},
		{"SELECT COUNT(*) FROM distinct_listing", &c.Distinct},
		{"SELECT COUNT(*) FROM validation_result", &c.Validated},
		{"SELECT COUNT(*) FROM validation_result WHERE outcome = 'Found'", &c.Found},
		{"SELECT COUNT(*) FROM final_listing", &c.Final},
		{"SELECT COUNT(*) FROM rescrape_task", &c.Rescrape},
	}
	for _, t := range targets {
		if err := s.db.QueryRowContext(ctx, t.query).Scan(t.dest); err != nil {
			return c, eris.Wrapf(err, "store: count (%s)", t.query)
		}
	}
	return c, nil
}

// RawRecords returns the cumulative raw set.
func (s *Store) RawRecords(ctx context.Context) ([]record.Raw, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT shard, %s FROM raw_listing ORDER BY shard", fieldList("")))
	if err != nil {
		return nil, eris.Wrap(err, "store: query raw_listing")
	}
	defer rows.Close()

	var out []record.Raw
	for rows.Next() {
		var r record.Raw
		var shard string
		if err := scanRaw(rows, &r, &shard); err != nil {
			return nil, eris.Wrap(err, "store: scan raw_listing")
		}
		r.Shard = shard
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate raw_listing")
}

// ShardIngest is one audit row of the merger.
type ShardIngest struct {
	RunID      string    `json:"run_id"`
	Shard      string    `json:"shard"`
	RowCount   int       `json:"row_count"`
	IngestedAt time.Time `json:"ingested_at"`
}

// ShardIngests lists merged shards in ingestion order.
func (s *Store) ShardIngests(ctx context.Context) ([]ShardIngest, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT COALESCE(run_id, ''), shard, row_count, ingested_at FROM shard_ingest ORDER BY ingested_at")
	if err != nil {
		return nil, eris.Wrap(err, "store: query shard_ingest")
	}
	defer rows.Close()

	var out []ShardIngest
	for rows.Next() {
		var si ShardIngest
		var at string
		if err := rows.Scan(&si.RunID, &si.Shard, &si.RowCount, &at); err != nil {
			return nil, eris.Wrap(err, "store: scan shard_ingest")
		}
		si.IngestedAt, _ = time.Parse(timeLayout, at)
		out = append(out, si)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate shard_ingest")
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRaw scans prefix columns followed by the fifteen semantic fields.
func scanRaw(sc scanner, r *record.Raw, prefix ...interface{}) error {
	values := make([]sql.NullString, record.FieldCount)
	dest := make([]interface{}, 0, len(prefix)+record.FieldCount)
	dest = append(dest, prefix...)
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := sc.Scan(dest...); err != nil {
		return err
	}
	for i, f := range r.Fields() {
		*f = fromNull(values[i])
	}
	return nil
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// nullable converts an optional value into a driver argument.
func nullable(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func fieldArgs(r record.Raw) []interface{} {
	values := r.Values()
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = nullable(v)
	}
	return args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}
