package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/repos"
)

// popularityGenerator is the universal fallback: a global ranking by
// interaction and rating volume. It has no cold-start guard and ignores
// the exclusion set, so every user gets a non-empty list.
type popularityGenerator struct {
	log         *logger.Logger
	productRepo repos.ProductRepo

	minInteractions int
	minRatings      int
}

func NewPopularityGenerator(baseLog *logger.Logger, productRepo repos.ProductRepo, cfg Config) CandidateGenerator {
	return &popularityGenerator{
		log:             baseLog.With("generator", sourcePopular),
		productRepo:     productRepo,
		minInteractions: cfg.PopularMinInteractions,
		minRatings:      cfg.PopularMinRatings,
	}
}

func (g *popularityGenerator) Name() string { return sourcePopular }

func (g *popularityGenerator) Generate(ctx context.Context, _ uuid.UUID, _ []uuid.UUID, limit int) ([]Candidate, error) {
	rows, err := g.productRepo.PopularCandidates(ctx, nil, g.minInteractions, g.minRatings, limit)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		avg := 0.0
		if row.AvgRating != nil {
			avg = *row.AvgRating
		}
		candidates = append(candidates, Candidate{
			ProductID: row.ProductID,
			Score:     float64(row.InteractionCount) + avg*2,
			Source:    sourcePopular,
		})
	}
	return candidates, nil
}
