package app

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"college-predictor/internal/common/config"
	"college-predictor/internal/common/logger"
	"college-predictor/internal/cutoff"
	"college-predictor/internal/dataset"
)

// ==========================
// Test Helper Functions
// ==========================

var testRounds = []string{"2023_1", "2023_2", "2023_3"}

func seedSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cutoffs.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range testRounds {
		_, err := db.Exec(`CREATE TABLE "` + table + `" ("College_Name_Not_Found" TEXT, "Course_Name" TEXT, "GM" TEXT)`)
		require.NoError(t, err)
	}
	rows := []struct{ table, inst, prog, gm string }{
		{"2023_1", "RVCE", "CS Computers", "500"},
		{"2023_1", "BMSCE", "EE Electrical", "2500"},
		{"2023_2", "RVCE", "CS Computers", "800"},
		{"2023_2", "PESU", "ME Mechanical", "3000"},
		{"2023_3", "SIT", "CS Computers", "4000"},
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO "`+r.table+`" VALUES (?, ?, ?)`, r.inst, r.prog, r.gm)
		require.NoError(t, err)
	}
	return path
}

func sqliteConfig(path string) *config.Config {
	cfg := &config.Config{
		Dataset: config.DatasetConfig{
			Backend:           config.BackendSQLite,
			Rounds:            testRounds,
			InstitutionColumn: "College_Name_Not_Found",
			ProgramColumn:     "Course_Name",
			MaxRows:           1000,
		},
		Database: config.DatabaseConfig{
			SQLite: config.SQLiteConfig{Path: path},
		},
	}
	cfg.Dataset.Cache.TTL = 60
	cfg.Dataset.Cache.Namespace = "test"
	return cfg
}

func checkNames(a *Application) []string {
	var names []string
	for _, c := range a.Checks() {
		names = append(names, c.Name)
	}
	return names
}

// ==========================
// Bootstrap
// ==========================

func TestNew_SQLiteBackend(t *testing.T) {
	cfg := sqliteConfig(seedSQLite(t))

	a, err := New(context.Background(), cfg, logger.NewTestLogger(t), WithConnectRetries(1, 0))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"sqlite"}, checkNames(a))
	assert.Equal(t, len(cutoff.DefaultCategories), a.Service().Categories().Len())

	page, err := a.Service().GetPage(context.Background(), cutoff.Request{Rank: 600, Category: "GM"}, 1)
	require.NoError(t, err)
	require.Len(t, page.Offers, 4)
	assert.Equal(t, "RVCE", page.Offers[0].Institution)
	assert.Equal(t, cutoff.RoundSecond, page.Offers[0].WinningRound)
	assert.Equal(t, 40, page.PageSize)

	for _, c := range a.Checks() {
		assert.NoError(t, c.Ping(context.Background()))
	}
}

func TestNew_WithCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := sqliteConfig(seedSQLite(t))
	cfg.Dataset.Cache.Enabled = true
	cfg.Database.Redis.Address = mr.Addr()

	a, err := New(context.Background(), cfg, logger.NewTestLogger(t), WithConnectRetries(1, 0))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"sqlite", "redis"}, checkNames(a))
	_, isCached := a.Dataset().(*dataset.CachedDataset)
	assert.True(t, isCached)

	_, err = a.Service().GetExportSet(context.Background(), cutoff.Request{Rank: 1, Category: "GM"})
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 3, "one cache entry per round")
}

func TestNew_CatalogAndCategoriesFromConfig(t *testing.T) {
	catalogPath := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte("groups:\n  - name: MECH\n    programs:\n      - \"ME Mechanical\"\n"), 0o600))

	cfg := sqliteConfig(seedSQLite(t))
	cfg.Dataset.Categories = []string{"GM"}
	cfg.Catalog.File = catalogPath
	cfg.Presentation.PageSize = 2

	a, err := New(context.Background(), cfg, logger.NewTestLogger(t), WithConnectRetries(1, 0))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"GM"}, a.Service().Categories().List())
	assert.True(t, a.Service().Catalog().Has("MECH"))
	assert.False(t, a.Service().Catalog().Has("IT"))

	page, err := a.Service().GetPage(context.Background(), cutoff.Request{Rank: 1, Category: "GM", Group: "MECH"}, 1)
	require.NoError(t, err)
	require.Len(t, page.Offers, 1)
	assert.Equal(t, "PESU", page.Offers[0].Institution)
	assert.Equal(t, 2, page.PageSize)
}

func TestNew_Errors(t *testing.T) {
	cfg := sqliteConfig(seedSQLite(t))
	cfg.Dataset.Backend = "mysql"
	_, err := New(context.Background(), cfg, logger.NewNoOpLogger(), WithConnectRetries(1, 0))
	assert.ErrorContains(t, err, "unsupported dataset backend")

	cfg = sqliteConfig(seedSQLite(t))
	cfg.Catalog.File = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = New(context.Background(), cfg, logger.NewNoOpLogger(), WithConnectRetries(1, 0))
	assert.Error(t, err)

	cfg = sqliteConfig(seedSQLite(t))
	cfg.Dataset.Cache.Enabled = true
	cfg.Database.Redis.Address = "127.0.0.1:1"
	_, err = New(context.Background(), cfg, logger.NewNoOpLogger(), WithConnectRetries(1, 0))
	assert.ErrorContains(t, err, "redis connection")
}

func TestNew_WithDataset(t *testing.T) {
	mem := dataset.NewMemory().Add(cutoff.RoundFirst, dataset.Row{
		Institution: "RVCE", Program: "CS Computers", Cutoffs: map[string]string{"GM": "100"},
	})

	a, err := New(context.Background(), &config.Config{}, logger.NewTestLogger(t), WithDataset(mem))
	require.NoError(t, err)
	assert.Empty(t, a.Checks())

	page, err := a.Service().GetPage(context.Background(), cutoff.Request{Rank: 50, Category: "GM"}, 1)
	require.NoError(t, err)
	require.Len(t, page.Offers, 1)
	assert.Equal(t, 90, page.Offers[0].Likelihood)
	assert.NoError(t, a.Close())
}

// ==========================
// Retry
// ==========================

func TestRetryWithBackoff(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, time.Millisecond, logger.NewTestLogger(t), "flaky dependency")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	err = RetryWithBackoff(context.Background(), func() error { return errors.New("down") }, 2, time.Millisecond, logger.NewNoOpLogger(), "dead dependency")
	assert.ErrorContains(t, err, "dead dependency failed after 2 attempts")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = RetryWithBackoff(ctx, func() error { return errors.New("down") }, 3, time.Hour, logger.NewNoOpLogger(), "cancelled")
	assert.ErrorIs(t, err, context.Canceled)
}
