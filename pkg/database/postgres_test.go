package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/strikegate/pkg/config"
)

func integrationDB(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	// Skip if DATABASE_URL is not set
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestNew(t *testing.T) {
	db := integrationDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, db.Ping(ctx))
}

func TestMigrate(t *testing.T) {
	db := integrationDB(t)

	err := db.Migrate(context.Background(),
		`CREATE TEMP TABLE IF NOT EXISTS migrate_probe (id int)`,
		`INSERT INTO migrate_probe VALUES (1)`,
	)
	assert.NoError(t, err)
}

func TestMigrateRollsBackOnFailure(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()

	err := db.Migrate(ctx,
		`CREATE TABLE IF NOT EXISTS migrate_rollback_probe (id int)`,
		`THIS IS NOT SQL`,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration step 1")

	var exists bool
	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_tables WHERE tablename = 'migrate_rollback_probe')`).Scan(&exists))
	assert.False(t, exists)
}

func TestNewNotConfigured(t *testing.T) {
	_, err := New(context.Background(), &config.Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewWithInvalidURL(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			URL:             "invalid://url",
			MaxConns:        5,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
	}

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestCloseNil(t *testing.T) {
	var db *DB
	db.Close()
	assert.ErrorIs(t, db.Ping(context.Background()), ErrNotConfigured)
}
