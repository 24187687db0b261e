package bootstrap

import (
	"fmt"
	"log"
	"strings"

	"marquee/internal/cache"
	"marquee/internal/config"
	"marquee/internal/database"
	"marquee/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedBuiltIns bool
}

// InitRuntime connects to DB and Redis and optionally runs built-in seeding.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	// Connect DB
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedBuiltIns && strings.EqualFold(cfg.Env, "development") {
		if err := seed.EnsureCatalog(db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed built-in catalog: %w", err)
		}
		log.Println("built-in catalog ensured")
	}

	return db, r, nil
}
