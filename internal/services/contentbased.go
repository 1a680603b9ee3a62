package services

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/repos"
)

// contentBasedGenerator infers category preference from the user's
// ratings and interaction history, then surfaces well-rated (or brand
// new) products from the preferred categories.
type contentBasedGenerator struct {
	log         *logger.Logger
	productRepo repos.ProductRepo
	ratingRepo  repos.RatingRepo

	topCategories int
	minAvgRating  float64
	goodRating    int
}

func NewContentBasedGenerator(
	baseLog *logger.Logger,
	productRepo repos.ProductRepo,
	ratingRepo repos.RatingRepo,
	cfg Config,
) CandidateGenerator {
	return &contentBasedGenerator{
		log:           baseLog.With("generator", sourceContentBased),
		productRepo:   productRepo,
		ratingRepo:    ratingRepo,
		topCategories: cfg.TopPreferredCategories,
		minAvgRating:  cfg.ContentMinAvgRating,
		goodRating:    cfg.ContentGoodRating,
	}
}

func (g *contentBasedGenerator) Name() string { return sourceContentBased }

func (g *contentBasedGenerator) Generate(ctx context.Context, userID uuid.UUID, excludeProductIDs []uuid.UUID, limit int) ([]Candidate, error) {
	ratings, err := g.ratingRepo.MapByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if len(excludeProductIDs) == 0 && len(ratings) == 0 {
		// Cold start: nothing to infer a preference from.
		return nil, nil
	}

	// Resolve the categories behind everything the user has touched.
	touched := make([]uuid.UUID, 0, len(excludeProductIDs)+len(ratings))
	touched = append(touched, excludeProductIDs...)
	for productID := range ratings {
		touched = append(touched, productID)
	}
	categoryByProduct, err := g.productRepo.CategoryIDsByProductIDs(ctx, nil, touched)
	if err != nil {
		return nil, err
	}

	// Good ratings weigh heavier than plain views.
	categoryScores := make(map[uuid.UUID]float64)
	for productID, rating := range ratings {
		if rating < g.goodRating {
			continue
		}
		if categoryID, ok := categoryByProduct[productID]; ok {
			categoryScores[categoryID] += float64(rating) * 2
		}
	}
	for _, productID := range excludeProductIDs {
		if categoryID, ok := categoryByProduct[productID]; ok {
			categoryScores[categoryID] += 1
		}
	}
	if len(categoryScores) == 0 {
		return nil, nil
	}

	topCategoryIDs := topScoredCategories(categoryScores, g.topCategories)

	rows, err := g.productRepo.ContentCandidates(ctx, nil, topCategoryIDs, excludeProductIDs, g.minAvgRating, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, Candidate{
			ProductID: row.ProductID,
			Score:     contentScore(row.AvgRating, row.RatingCount),
			Source:    sourceContentBased,
		})
	}
	return candidates, nil
}

// contentScore dampens raw average rating by how much corroboration it
// has: more ratings push the score up, capped so volume alone cannot
// dominate quality. Unrated products get a neutral 3.0 baseline.
func contentScore(avgRating *float64, ratingCount int64) float64 {
	avg := 3.0
	if avgRating != nil {
		avg = *avgRating
	}
	count := ratingCount
	if count > 10 {
		count = 10
	}
	return avg * (1 + float64(count)/10)
}

func topScoredCategories(scores map[uuid.UUID]float64, n int) []uuid.UUID {
	type categoryScore struct {
		id    uuid.UUID
		score float64
	}
	ranked := make([]categoryScore, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, categoryScore{id: id, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id.String() < ranked[j].id.String()
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]uuid.UUID, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, c.id)
	}
	return out
}
