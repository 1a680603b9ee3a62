package services

import (
	"time"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/utils"
)

// Config carries the tunables of the recommendation pipeline. Defaults
// mirror production values; main overrides them from the environment.
type Config struct {
	// Waterfall
	CacheTTL       time.Duration
	StaleThreshold time.Duration
	TopK           int

	// Tier 3 compute
	ComputeTimeout       time.Duration
	SlowComputeThreshold time.Duration

	// Collaborative
	MinInteractionsForCollaborative int
	NeighborWindow                  time.Duration
	RecentProductLimit              int
	NeighborLimit                   int
	NeighborCacheTTL                time.Duration

	// Content-based
	TopPreferredCategories int
	ContentMinAvgRating    float64
	ContentGoodRating      int

	// Popularity
	PopularMinInteractions int
	PopularMinRatings      int
}

func DefaultConfig() Config {
	return Config{
		CacheTTL:       time.Hour,
		StaleThreshold: 24 * time.Hour,
		TopK:           10,

		ComputeTimeout:       10 * time.Second,
		SlowComputeThreshold: 5 * time.Second,

		MinInteractionsForCollaborative: 3,
		NeighborWindow:                  90 * 24 * time.Hour,
		RecentProductLimit:              50,
		NeighborLimit:                   20,
		NeighborCacheTTL:                6 * time.Hour,

		TopPreferredCategories: 5,
		ContentMinAvgRating:    3.5,
		ContentGoodRating:      4,

		PopularMinInteractions: 5,
		PopularMinRatings:      3,
	}
}

// ConfigFromEnv layers environment overrides over the defaults. Only
// the knobs operators actually turn are exposed; the rest stay at their
// defaults.
func ConfigFromEnv(log *logger.Logger) Config {
	cfg := DefaultConfig()
	cfg.CacheTTL = utils.GetEnvAsDuration("REC_CACHE_TTL", cfg.CacheTTL, log)
	cfg.StaleThreshold = utils.GetEnvAsDuration("REC_STALE_THRESHOLD", cfg.StaleThreshold, log)
	cfg.TopK = utils.GetEnvAsInt("REC_TOP_K", cfg.TopK, log)
	cfg.ComputeTimeout = utils.GetEnvAsDuration("REC_COMPUTE_TIMEOUT", cfg.ComputeTimeout, log)
	cfg.MinInteractionsForCollaborative = utils.GetEnvAsInt("REC_MIN_INTERACTIONS", cfg.MinInteractionsForCollaborative, log)
	cfg.NeighborCacheTTL = utils.GetEnvAsDuration("REC_NEIGHBOR_CACHE_TTL", cfg.NeighborCacheTTL, log)
	return cfg
}
