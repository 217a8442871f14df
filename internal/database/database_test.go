package database

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"testing"
	"time"

	"carlot/internal/config"
	"carlot/internal/database/migrations"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func sqliteConfig() *config.Config {
	return &config.Config{
		DatabaseURL: "sqlite://:memory:",
		Port:        "3000",
		Env:         "test",
	}
}

func TestDialector(t *testing.T) {
	assert.Equal(t, "sqlite", Dialector("sqlite://:memory:").Name())
	assert.Equal(t, "postgres", Dialector("postgres://user:pw@localhost:5432/cars").Name())
}

func TestConnect_SQLiteAutoMigrates(t *testing.T) {
	db, err := Connect(context.Background(), sqliteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	assert.True(t, db.Migrator().HasTable("cars"))
	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasColumn("cars", "comments"))
	assert.True(t, db.Migrator().HasColumn("cars", "version"))
}

func TestMigrate_ProductionPostgresUsesGoose(t *testing.T) {
	db, err := Connect(context.Background(), sqliteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	var calledDir string
	orig := gooseUpContext
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		calledDir = dir
		return nil
	}
	t.Cleanup(func() { gooseUpContext = orig })

	cfg := &config.Config{DatabaseURL: "postgres://localhost/cars", Port: "3000", Env: "production"}
	require.NoError(t, Migrate(context.Background(), db, cfg))
	assert.Equal(t, ".", calledDir)
}

func TestMigrate_GooseFailureIsWrapped(t *testing.T) {
	db, err := Connect(context.Background(), sqliteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	boom := errors.New("boom")
	orig := gooseUpContext
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom }
	t.Cleanup(func() { gooseUpContext = orig })

	cfg := &config.Config{DatabaseURL: "postgres://localhost/cars", Port: "3000", Env: "prod"}
	err = Migrate(context.Background(), db, cfg)
	assert.ErrorIs(t, err, boom)
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.Glob(migrations.Migrations, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_create_users.sql", "00002_create_cars.sql"}, entries)

	body, err := migrations.Migrations.ReadFile("00002_create_cars.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "version")
}

func TestCustomGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(slog.New(slog.NewTextHandler(&buf, nil)), logger.Warn)
	ctx := context.Background()
	sqlFn := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), sqlFn, nil)
	assert.Empty(t, buf.String())

	l.Trace(ctx, time.Now(), sqlFn, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	l.Trace(ctx, time.Now(), sqlFn, errors.New("syntax error"))
	assert.Contains(t, buf.String(), "GORM query error")
	buf.Reset()

	l.Trace(ctx, time.Now().Add(-time.Second), sqlFn, nil)
	assert.Contains(t, buf.String(), "GORM slow query")
	buf.Reset()

	silent := l.LogMode(logger.Silent)
	silent.Trace(ctx, time.Now(), sqlFn, errors.New("ignored"))
	assert.Empty(t, buf.String())
}
