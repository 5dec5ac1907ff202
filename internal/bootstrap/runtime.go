// Package bootstrap wires up the shared runtime dependencies (database,
// Redis, demo data) used by the server and the CLI tools.
package bootstrap

import (
	"fmt"

	"ripple/internal/cache"
	"ripple/internal/config"
	"ripple/internal/database"
	"ripple/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo populates the database with demo users, posts and DMs.
	SeedDemo bool
	// DemoUsers and DemoPosts size the demo data set when SeedDemo is set.
	DemoUsers int
	DemoPosts int
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
// Connect applies the schema policy itself. The Redis client is nil when
// Redis is unreachable; callers degrade gracefully.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedDemo {
		users := opts.DemoUsers
		if users <= 0 {
			users = 25
		}
		posts := opts.DemoPosts
		if posts <= 0 {
			posts = 100
		}
		if err := seed.Seed(db, seed.Options{NumUsers: users, NumPosts: posts}); err != nil {
			return nil, nil, fmt.Errorf("demo seeding failed: %w", err)
		}
	}

	return db, r, nil
}
