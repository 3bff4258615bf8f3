package config

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbr-consolidate/internal/record"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SIMILARITY_THRESHOLD", "0.85")
	t.Setenv("POSITIVE_LABEL", "Found")
	t.Setenv("BBOX_LAT_MIN", "-7.0")
	t.Setenv("MAXLEN_NAME", "80")
	t.Setenv("DEDUP_NORMALIZE_FIELDS", "yes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.DB.ConnString())
	assert.InDelta(t, 0.85, cfg.SimilarityThreshold, 1e-9)
	assert.Equal(t, "Found", cfg.PositiveLabel)
	assert.InDelta(t, -7.0, cfg.BoundingBox.LatMin, 1e-9)
	assert.InDelta(t, defaultBoundingBox.LatMax, cfg.BoundingBox.LatMax, 1e-9)
	assert.Equal(t, 80, cfg.MaxLength(record.ColName))
	assert.Equal(t, 150, cfg.MaxLength(record.ColQuery))
	assert.Equal(t, DefaultMaxLength, cfg.MaxLength(record.ColAddress))
	assert.True(t, cfg.DedupNormalizeFields)
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SIMILARITY_THRESHOLD", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidThreshold))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "threshold above one", mutate: func(c *Config) { c.SimilarityThreshold = 1.01 }, wantErr: ErrInvalidThreshold},
		{name: "negative threshold", mutate: func(c *Config) { c.SimilarityThreshold = -0.1 }, wantErr: ErrInvalidThreshold},
		{name: "inverted box", mutate: func(c *Config) { c.BoundingBox.LatMin, c.BoundingBox.LatMax = 1, -1 }, wantErr: ErrInvalidBoundingBox},
		{name: "box outside wgs84", mutate: func(c *Config) { c.BoundingBox.LonMax = 181 }, wantErr: ErrInvalidBoundingBox},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, eris.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestValidateOtherFields(t *testing.T) {
	cfg := Default()
	cfg.PositiveLabel = "  "
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.PartitionPattern = "("
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.DB.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.IngestWorkers = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.IngestWorkers)
}

func TestConnString(t *testing.T) {
	assert.Equal(t, DefaultSQLitePath, DBConfig{Driver: "sqlite"}.ConnString())
	assert.Equal(t, ":memory:", DBConfig{Driver: "sqlite", DSN: ":memory:"}.ConnString())
	assert.Equal(t, "file:x.db", DBConfig{Driver: "sqlite", DSN: "file:x.db"}.ConnString())
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable",
		DBConfig{Driver: "postgres", Host: "h", Port: "5432", User: "u", Password: "p", Name: "d", SSLMode: "disable"}.ConnString())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("X_INT", " 42 ")
	t.Setenv("X_BAD_INT", "forty")
	t.Setenv("X_FLOAT", "0.5")
	t.Setenv("X_BOOL", "off")

	assert.Equal(t, 42, GetEnvInt("X_INT", 1))
	assert.Equal(t, 1, GetEnvInt("X_BAD_INT", 1))
	assert.InDelta(t, 0.5, GetEnvFloat("X_FLOAT", 0), 1e-9)
	assert.False(t, GetEnvBool("X_BOOL", true))
	assert.Equal(t, "fallback", GetEnv("X_UNSET_FOR_TEST", "fallback"))
}
