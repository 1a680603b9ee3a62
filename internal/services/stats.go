package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/repos"
)

type InteractionStats struct {
	Total         int64 `json:"total"`
	Recent        int64 `json:"recent"`
	UniqueUsers   int64 `json:"unique_users"`
	ActiveUsers   int64 `json:"active_users"`
	TouchedItems  int64 `json:"touched_products"`
	ActiveCatalog int64 `json:"active_products"`
}

type RatingStats struct {
	Total   int64   `json:"total"`
	Average float64 `json:"average"`
}

type CoverageStats struct {
	StoredRecommendations int64   `json:"stored_recommendations"`
	UniqueUsers           int64   `json:"unique_users"`
	CoveragePercent       float64 `json:"coverage_percent"`
}

type SystemStats struct {
	WindowDays   int                   `json:"window_days"`
	Interactions InteractionStats      `json:"interactions"`
	Ratings      RatingStats           `json:"ratings"`
	Coverage     CoverageStats         `json:"coverage"`
	TopProducts  []repos.ProductVolume `json:"top_products"`
	TopUsers     []repos.UserVolume    `json:"top_users"`
}

// StatsService aggregates operational statistics for the admin surface.
type StatsService interface {
	SystemStats(ctx context.Context, windowDays int) (*SystemStats, error)
}

type statsService struct {
	db  *gorm.DB
	log *logger.Logger

	interactionRepo    repos.InteractionRepo
	ratingRepo         repos.RatingRepo
	productRepo        repos.ProductRepo
	recommendationRepo repos.RecommendationRepo
}

func NewStatsService(
	db *gorm.DB,
	baseLog *logger.Logger,
	interactionRepo repos.InteractionRepo,
	ratingRepo repos.RatingRepo,
	productRepo repos.ProductRepo,
	recommendationRepo repos.RecommendationRepo,
) StatsService {
	return &statsService{
		db:                 db,
		log:                baseLog.With("service", "StatsService"),
		interactionRepo:    interactionRepo,
		ratingRepo:         ratingRepo,
		productRepo:        productRepo,
		recommendationRepo: recommendationRepo,
	}
}

func (s *statsService) SystemStats(ctx context.Context, windowDays int) (*SystemStats, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)

	stats := &SystemStats{WindowDays: windowDays}

	// Independent aggregate queries; gather them concurrently the same
	// way recommendation compute fans its sources out.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		stats.Interactions.Total, err = s.interactionRepo.Count(egCtx, nil)
		return err
	})
	eg.Go(func() (err error) {
		stats.Interactions.Recent, err = s.interactionRepo.CountSince(egCtx, nil, since)
		return err
	})
	eg.Go(func() (err error) {
		stats.Interactions.UniqueUsers, err = s.interactionRepo.DistinctUserCount(egCtx, nil)
		return err
	})
	eg.Go(func() (err error) {
		stats.Interactions.ActiveUsers, err = s.interactionRepo.DistinctUserCountSince(egCtx, nil, since)
		return err
	})
	eg.Go(func() (err error) {
		stats.Interactions.TouchedItems, err = s.interactionRepo.DistinctProductCount(egCtx, nil)
		return err
	})
	eg.Go(func() (err error) {
		stats.Interactions.ActiveCatalog, err = s.productRepo.CountActive(egCtx, nil)
		return err
	})
	eg.Go(func() (err error) {
		stats.Ratings.Total, err = s.ratingRepo.Count(egCtx, nil)
		return err
	})
	eg.Go(func() (err error) {
		stats.Ratings.Average, err = s.ratingRepo.Average(egCtx, nil)
		return err
	})
	eg.Go(func() (err error) {
		stats.Coverage.StoredRecommendations, err = s.recommendationRepo.Count(egCtx, nil)
		return err
	})
	eg.Go(func() (err error) {
		stats.TopProducts, err = s.interactionRepo.TopProductsSince(egCtx, nil, since, 10)
		return err
	})
	eg.Go(func() (err error) {
		stats.TopUsers, err = s.interactionRepo.TopUsersSince(egCtx, nil, since, 10)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	stats.Coverage.UniqueUsers = stats.Interactions.UniqueUsers
	if stats.Interactions.UniqueUsers > 0 {
		stats.Coverage.CoveragePercent = 100 * float64(stats.Coverage.StoredRecommendations) / float64(stats.Interactions.UniqueUsers)
	}
	if stats.TopProducts == nil {
		stats.TopProducts = []repos.ProductVolume{}
	}
	if stats.TopUsers == nil {
		stats.TopUsers = []repos.UserVolume{}
	}
	return stats, nil
}
