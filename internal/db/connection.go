package db

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sbr-consolidate/internal/config"
)

// Dialect distinguishes the SQL flavours the store speaks.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Connection holds the database connection
type Connection struct {
	DB      *sql.DB
	Dialect Dialect
}

// NewConnection opens and pings the configured store.
func NewConnection(ctx context.Context, cfg config.DBConfig) (*Connection, error) {
	dialect := Dialect(cfg.Driver)
	if dialect != Postgres && dialect != SQLite {
		return nil, eris.Errorf("db: unsupported driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.ConnString())
	if err != nil {
		return nil, eris.Wrap(err, "db: open")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "db: ping")
	}

	// Connection pool settings. An in-memory SQLite database lives and dies
	// with its connection, so SQLite gets exactly one.
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, eris.Wrap(err, "db: sqlite pragma")
		}
	} else {
		maxConns := cfg.MaxConns
		if maxConns < 2 {
			maxConns = 2
		}
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns / 2)
	}

	return &Connection{DB: db, Dialect: dialect}, nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.DB.Close()
}

// Rebind rewrites ? placeholders into the dialect's form.
func (c *Connection) Rebind(query string) string {
	return Rebind(c.Dialect, query)
}

// Rebind rewrites ? placeholders to $1..$n for postgres. Queries must not
// contain literal question marks.
func Rebind(dialect Dialect, query string) string {
	if dialect != Postgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
