package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sbr-consolidate/internal/record"
)

var (
	ErrInvalidThreshold   = eris.New("similarity threshold must be within [0,1]")
	ErrInvalidBoundingBox = eris.New("bounding box must satisfy min <= max within WGS84 ranges")
)

// Kota Bandung administrative area, padded slightly.
var defaultBoundingBox = record.BoundingBox{
	LatMin: -6.9800,
	LatMax: -6.8300,
	LonMin: 107.5400,
	LonMax: 107.7500,
}

// DefaultMaxLength applies to every text field without its own limit.
const DefaultMaxLength = 255

var defaultMaxLengths = map[string]int{
	record.ColIDSBR: 32,
	record.ColQuery: 150,
	record.ColName:  150,
	record.ColPhone: 32,
}

// DBConfig selects and addresses the relational store.
type DBConfig struct {
	Driver   string // postgres or sqlite
	DSN      string // overrides the PG* parts when set
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int
}

// WebConfig addresses the re-scrape feed server.
type WebConfig struct {
	Host string
	Port int
}

// Config holds everything one pipeline run consumes.
type Config struct {
	DB  DBConfig
	Web WebConfig

	ShardDir      string
	OutputDir     string
	QueryList     string
	IngestWorkers int

	PositiveLabel       string
	SimilarityThreshold float64
	BoundingBox         record.BoundingBox
	MaxLengths          map[string]int

	LowRowRatio      float64
	PartitionPattern string

	DedupNormalizeFields bool
	Debug                bool
}

// Load reads configuration from the environment after loading .env.
func Load() (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, eris.Wrap(err, "config: load .env")
	}

	cfg := &Config{
		DB: DBConfig{
			Driver:   GetEnv("DB_DRIVER", "postgres"),
			DSN:      GetEnv("DB_DSN", ""),
			Host:     GetEnv("PGHOST", "localhost"),
			Port:     GetEnv("PGPORT", "5432"),
			User:     GetEnv("PGUSER", "postgres"),
			Password: GetEnv("PGPASSWORD", "postgres"),
			Name:     GetEnv("PGDATABASE", "sbr_listing"),
			SSLMode:  GetEnv("PGSSLMODE", "disable"),
			MaxConns: GetEnvInt("DB_MAX_CONNECTIONS", 10),
		},
		Web: WebConfig{
			Host: GetEnv("WEB_HOST", "localhost"),
			Port: GetEnvInt("WEB_PORT", 8080),
		},

		ShardDir:      GetEnv("SHARD_DIR", "./shards"),
		OutputDir:     GetEnv("OUTPUT_DIR", "./output"),
		QueryList:     GetEnv("QUERY_LIST", "./queries.csv"),
		IngestWorkers: GetEnvInt("INGEST_WORKERS", 4),

		PositiveLabel:       GetEnv("POSITIVE_LABEL", "Ditemukan"),
		SimilarityThreshold: GetEnvFloat("SIMILARITY_THRESHOLD", 0.70),
		BoundingBox: record.BoundingBox{
			LatMin: GetEnvFloat("BBOX_LAT_MIN", defaultBoundingBox.LatMin),
			LatMax: GetEnvFloat("BBOX_LAT_MAX", defaultBoundingBox.LatMax),
			LonMin: GetEnvFloat("BBOX_LON_MIN", defaultBoundingBox.LonMin),
			LonMax: GetEnvFloat("BBOX_LON_MAX", defaultBoundingBox.LonMax),
		},
		MaxLengths: loadMaxLengths(),

		LowRowRatio:      GetEnvFloat("LOW_ROW_RATIO", 0.25),
		PartitionPattern: GetEnv("PARTITION_PATTERN", `(\d+)\D*$`),

		DedupNormalizeFields: GetEnvBool("DEDUP_NORMALIZE_FIELDS", false),
		Debug:                GetEnvBool("DEBUG", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without consulting the
// environment.
func Default() *Config {
	lengths := make(map[string]int, len(defaultMaxLengths))
	for k, v := range defaultMaxLengths {
		lengths[k] = v
	}
	return &Config{
		DB:                  DBConfig{Driver: "sqlite", DSN: ":memory:", MaxConns: 1},
		Web:                 WebConfig{Host: "localhost", Port: 8080},
		ShardDir:            "./shards",
		OutputDir:           "./output",
		QueryList:           "./queries.csv",
		IngestWorkers:       4,
		PositiveLabel:       "Ditemukan",
		SimilarityThreshold: 0.70,
		BoundingBox:         defaultBoundingBox,
		MaxLengths:          lengths,
		LowRowRatio:         0.25,
		PartitionPattern:    `(\d+)\D*$`,
	}
}

// loadMaxLengths reads MAXLEN_<COLUMN> overrides.
func loadMaxLengths() map[string]int {
	lengths := make(map[string]int, len(record.Columns))
	for _, col := range record.Columns {
		def, ok := defaultMaxLengths[col]
		if !ok {
			def = DefaultMaxLength
		}
		lengths[col] = GetEnvInt("MAXLEN_"+strings.ToUpper(col), def)
	}
	return lengths
}

// MaxLength returns the retained rune length for a text column.
func (c *Config) MaxLength(column string) int {
	if n, ok := c.MaxLengths[column]; ok && n > 0 {
		return n
	}
	return DefaultMaxLength
}

// Validate checks the values the validator and checker depend on.
func (c *Config) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return eris.Wrapf(ErrInvalidThreshold, "config: got %.3f", c.SimilarityThreshold)
	}
	if !c.BoundingBox.Valid() {
		return eris.Wrapf(ErrInvalidBoundingBox, "config: got %+v", c.BoundingBox)
	}
	if strings.TrimSpace(c.PositiveLabel) == "" {
		return eris.New("config: positive label must not be empty")
	}
	if c.LowRowRatio < 0 || c.LowRowRatio > 1 {
		return eris.Errorf("config: low row ratio %.3f outside [0,1]", c.LowRowRatio)
	}
	if _, err := regexp.Compile(c.PartitionPattern); err != nil {
		return eris.Wrap(err, "config: partition pattern")
	}
	if c.IngestWorkers < 1 {
		c.IngestWorkers = 1
	}
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: unsupported DB_DRIVER %q", c.DB.Driver)
	}
	return nil
}

// DefaultSQLitePath is the SQLite file used when no DSN is configured, so
// stage-by-stage CLI invocations share one store.
const DefaultSQLitePath = "sbr_listing.db"

// ConnString returns the connection string for the configured driver.
func (c DBConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == "sqlite" {
		return DefaultSQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}
