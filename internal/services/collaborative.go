package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/savoro/savoro-backend/internal/clients/redis"
	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/repos"
)

// collaborativeGenerator surfaces products that users with overlapping
// taste engaged with. The neighbor search is bounded to the user's most
// recent products inside a trailing window so it stays tractable as the
// interaction table grows, and the neighbor id list is cached since it
// drifts slowly.
type collaborativeGenerator struct {
	log             *logger.Logger
	interactionRepo repos.InteractionRepo
	cache           redis.RecommendationCache

	minInteractions    int
	window             time.Duration
	recentProductLimit int
	neighborLimit      int
	neighborCacheTTL   time.Duration
}

func NewCollaborativeGenerator(
	baseLog *logger.Logger,
	interactionRepo repos.InteractionRepo,
	cache redis.RecommendationCache,
	cfg Config,
) CandidateGenerator {
	return &collaborativeGenerator{
		log:                baseLog.With("generator", sourceCollaborative),
		interactionRepo:    interactionRepo,
		cache:              cache,
		minInteractions:    cfg.MinInteractionsForCollaborative,
		window:             cfg.NeighborWindow,
		recentProductLimit: cfg.RecentProductLimit,
		neighborLimit:      cfg.NeighborLimit,
		neighborCacheTTL:   cfg.NeighborCacheTTL,
	}
}

func (g *collaborativeGenerator) Name() string { return sourceCollaborative }

func (g *collaborativeGenerator) Generate(ctx context.Context, userID uuid.UUID, excludeProductIDs []uuid.UUID, limit int) ([]Candidate, error) {
	// Cold-start guard: too little history to say anything about taste.
	if len(excludeProductIDs) < g.minInteractions {
		return nil, nil
	}

	since := time.Now().UTC().Add(-g.window)

	neighborIDs, ok := g.cache.GetNeighborIDs(ctx, userID)
	if !ok {
		recentIDs, err := g.interactionRepo.RecentProductIDsByUser(ctx, nil, userID, since, g.recentProductLimit)
		if err != nil {
			return nil, err
		}
		overlaps, err := g.interactionRepo.NeighborUserIDs(ctx, nil, recentIDs, userID, since, g.neighborLimit)
		if err != nil {
			return nil, err
		}
		if len(overlaps) == 0 {
			return nil, nil
		}
		neighborIDs = make([]uuid.UUID, 0, len(overlaps))
		for _, o := range overlaps {
			neighborIDs = append(neighborIDs, o.UserID)
		}
		g.cache.SetNeighborIDs(ctx, userID, neighborIDs, g.neighborCacheTTL)
	}
	if len(neighborIDs) == 0 {
		return nil, nil
	}

	rows, err := g.interactionRepo.NeighborCandidates(ctx, nil, neighborIDs, excludeProductIDs, since, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, Candidate{
			ProductID: row.ProductID,
			Score:     float64(row.InteractionCount),
			Source:    sourceCollaborative,
		})
	}
	return candidates, nil
}
