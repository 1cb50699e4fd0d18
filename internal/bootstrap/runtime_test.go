package bootstrap

import (
	"path/filepath"
	"testing"

	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:          "test",
		DBDriver:     config.DriverSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "agora.db"),
		DBSchemaMode: "hybrid",
	}
}

func closeRuntime(t *testing.T) {
	t.Cleanup(func() {
		if c := cache.GetClient(); c != nil {
			_ = c.Close()
		}
		cache.SetClient(nil)
	})
}

func TestInitRuntime_SeedsBuiltIns(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := sqliteConfig(t)
	cfg.RedisURL = mr.Addr()
	closeRuntime(t)

	db, r, err := InitRuntime(cfg, Options{SeedBuiltIns: true})
	require.NoError(t, err)
	require.NotNil(t, r)

	var names []string
	require.NoError(t, db.Model(&models.Community{}).Order("name").Pluck("name", &names).Error)
	assert.Equal(t, []string{"announcements", "introductions", "meta"}, names)

	// Seeding again is a no-op.
	require.NoError(t, SeedBuiltIns(t.Context(), db))
	var n int64
	require.NoError(t, db.Model(&models.Community{}).Count(&n).Error)
	assert.EqualValues(t, 3, n)
}

func TestInitRuntime_WithoutRedis(t *testing.T) {
	cfg := sqliteConfig(t)
	closeRuntime(t)

	db, r, err := InitRuntime(cfg, Options{})
	require.NoError(t, err)
	assert.NotNil(t, db)
	assert.Nil(t, r)
}

func TestInitRuntime_BadSchemaMode(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.DBSchemaMode = "sql"
	closeRuntime(t)

	_, _, err := InitRuntime(cfg, Options{})
	assert.Error(t, err)
}
