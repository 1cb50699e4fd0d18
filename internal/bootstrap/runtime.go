// Package bootstrap wires the process-wide runtime: database, cache and
// built-in content.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/middleware"
	"agora/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// BuiltInFixture is the embedded fixture applied by SeedBuiltIns.
const BuiltInFixture = "builtin.yaml"

// Options control runtime initialization behavior.
type Options struct {
	SeedBuiltIns bool
}

// InitRuntime connects to DB and Redis and optionally seeds the built-in
// communities. A missing Redis is not an error; the returned client is nil.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedBuiltIns {
		if err := SeedBuiltIns(context.Background(), db); err != nil {
			return nil, nil, err
		}
	}

	return db, r, nil
}

// SeedBuiltIns applies the built-in fixture. Existing rows are left alone.
func SeedBuiltIns(ctx context.Context, db *gorm.DB) error {
	fx, err := seed.LoadFixture(nil, BuiltInFixture)
	if err != nil {
		return err
	}
	res, err := seed.ApplyFixture(ctx, db, fx)
	if err != nil {
		return fmt.Errorf("failed to seed built-in communities: %w", err)
	}
	if res.Communities > 0 {
		middleware.Logger.InfoContext(ctx, "built-in communities seeded", slog.Int("count", res.Communities))
	}
	return nil
}
