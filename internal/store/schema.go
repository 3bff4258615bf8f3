package store

import (
	"fmt"
	"strings"

	"github.com/sbr-consolidate/internal/record"
)

// textColumns renders "<col> TEXT" for the fifteen semantic fields.
func textColumns() string {
	parts := make([]string, len(record.Columns))
	for i, col := range record.Columns {
		parts[i] = col + " TEXT"
	}
	return strings.Join(parts, ",\n\t\t")
}

// fieldList is the comma separated semantic column list, optionally
// qualified with a table alias.
func fieldList(alias string) string {
	if alias == "" {
		return strings.Join(record.Columns, ", ")
	}
	parts := make([]string, len(record.Columns))
	for i, col := range record.Columns {
		parts[i] = alias + "." + col
	}
	return strings.Join(parts, ", ")
}

// schemaStatements creates every table the pipeline touches. The SQL is
// restricted to what both PostgreSQL and SQLite accept.
func schemaStatements() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stg_listing (
		shard_row INTEGER NOT NULL,
		%s
	)`, textColumns()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS raw_listing (
		run_id TEXT,
		shard TEXT NOT NULL,
		%s
	)`, textColumns()),

		`CREATE TABLE IF NOT EXISTS shard_ingest (
		run_id TEXT,
		shard TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		ingested_at TEXT NOT NULL
	)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS distinct_listing (
		distinct_id BIGINT NOT NULL PRIMARY KEY,
		%s
	)`, textColumns()),

		`CREATE TABLE IF NOT EXISTS validation_result (
		distinct_id BIGINT NOT NULL PRIMARY KEY,
		similarity DOUBLE PRECISION NOT NULL,
		geo TEXT NOT NULL,
		outcome TEXT NOT NULL CHECK (outcome IN ('Found', 'NotFound')),
		reason TEXT
	)`,

		`CREATE TABLE IF NOT EXISTS final_listing (
		final_id BIGINT NOT NULL PRIMARY KEY,
		distinct_id BIGINT NOT NULL,
		idsbr TEXT,
		query TEXT,
		name TEXT,
		category TEXT,
		rating DOUBLE PRECISION,
		review_count BIGINT,
		address TEXT,
		phone TEXT,
		website TEXT,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		status TEXT,
		hours TEXT,
		place_type TEXT,
		validation TEXT NOT NULL CHECK (validation IN ('Found', 'NotFound'))
	)`,

		`CREATE TABLE IF NOT EXISTS pipeline_run (
		run_id TEXT NOT NULL PRIMARY KEY,
		run_label TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		shards INTEGER NOT NULL DEFAULT 0,
		failed_shards INTEGER NOT NULL DEFAULT 0,
		raw_rows INTEGER NOT NULL DEFAULT 0,
		distinct_rows INTEGER NOT NULL DEFAULT 0,
		validated_rows INTEGER NOT NULL DEFAULT 0,
		final_rows INTEGER NOT NULL DEFAULT 0,
		notes TEXT
	)`,

		`CREATE TABLE IF NOT EXISTS rescrape_task (
		query TEXT NOT NULL,
		partition_id TEXT,
		reason TEXT NOT NULL,
		shard TEXT,
		created_at TEXT NOT NULL
	)`,

		`CREATE INDEX IF NOT EXISTS raw_listing_idsbr_idx ON raw_listing (idsbr)`,
		`CREATE INDEX IF NOT EXISTS raw_listing_shard_idx ON raw_listing (shard)`,
		`CREATE INDEX IF NOT EXISTS validation_result_outcome_idx ON validation_result (outcome)`,
	}
}
