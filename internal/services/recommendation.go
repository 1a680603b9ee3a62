package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/savoro/savoro-backend/internal/clients/redis"
	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/repos"
	"github.com/savoro/savoro-backend/internal/types"
)

// ErrProductNotFound is returned when a similarity or tracking target
// does not resolve to a live product.
var ErrProductNotFound = errors.New("product not found")

// StoredRecommendationStatus is the debug view of a user's durable row.
type StoredRecommendationStatus struct {
	Recommendation *types.Recommendation `json:"recommendation"`
	IsStale        bool                  `json:"is_stale"`
	StaleThreshold time.Duration         `json:"-"`
}

type BatchRefreshError struct {
	UserID uuid.UUID `json:"user_id"`
	Error  string    `json:"error"`
}

type BatchRefreshReport struct {
	Updated int                 `json:"updated"`
	Total   int                 `json:"total"`
	Errors  []BatchRefreshError `json:"errors"`
}

type PurgeReport struct {
	Interactions    int64 `json:"interactions"`
	Ratings         int64 `json:"ratings"`
	Recommendations int64 `json:"recommendations"`
}

// RecommendationService is the public entry point of the recommendation
// core. Reads walk a waterfall: ephemeral cache, then the durable store
// (serving stale data while a refresh runs in the background), then a
// synchronous full computation guarded by a per-user lock.
type RecommendationService interface {
	GetUserRecommendations(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Product, error)
	GetSimilarProducts(ctx context.Context, productID uuid.UUID, limit int) ([]*types.Product, error)
	PopularProducts(ctx context.Context, limit int) ([]*types.Product, error)

	// TrackInteraction records a view/click without blocking the caller.
	// Failures are logged, never returned.
	TrackInteraction(userID, productID uuid.UUID)

	// RefreshUserRecommendations recomputes and persists the full top-K
	// list synchronously, bypassing the waterfall tiers.
	RefreshUserRecommendations(ctx context.Context, userID uuid.UUID) (*types.Recommendation, error)

	BatchRefresh(ctx context.Context, since time.Time, limit int) (*BatchRefreshReport, error)

	// HandleProductSoftDeleted eagerly trims the product from every stored
	// list and invalidates the affected cache entries. Returns the number
	// of affected users.
	HandleProductSoftDeleted(ctx context.Context, productID uuid.UUID) (int, error)

	GetStoredRecommendation(ctx context.Context, userID uuid.UUID) (*StoredRecommendationStatus, error)
	GetUserInteractions(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Interaction, error)
	PurgeData(ctx context.Context) (*PurgeReport, error)
}

type recommendationService struct {
	db  *gorm.DB
	log *logger.Logger
	cfg Config

	cache              redis.RecommendationCache
	productRepo        repos.ProductRepo
	interactionRepo    repos.InteractionRepo
	ratingRepo         repos.RatingRepo
	recommendationRepo repos.RecommendationRepo

	collaborative CandidateGenerator
	contentBased  CandidateGenerator
	popular       CandidateGenerator

	locks           *userLockRegistry
	refreshInFlight sync.Map
}

func NewRecommendationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg Config,
	cache redis.RecommendationCache,
	productRepo repos.ProductRepo,
	interactionRepo repos.InteractionRepo,
	ratingRepo repos.RatingRepo,
	recommendationRepo repos.RecommendationRepo,
	collaborative CandidateGenerator,
	contentBased CandidateGenerator,
	popular CandidateGenerator,
) RecommendationService {
	return &recommendationService{
		db:                 db,
		log:                baseLog.With("service", "RecommendationService"),
		cfg:                cfg,
		cache:              cache,
		productRepo:        productRepo,
		interactionRepo:    interactionRepo,
		ratingRepo:         ratingRepo,
		recommendationRepo: recommendationRepo,
		collaborative:      collaborative,
		contentBased:       contentBased,
		popular:            popular,
		locks:              newUserLockRegistry(),
	}
}

func (s *recommendationService) GetUserRecommendations(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Product, error) {
	if limit <= 0 {
		limit = s.cfg.TopK
	}

	// Tier 1: ephemeral cache.
	if products, ok := s.cache.GetUserProducts(ctx, userID); ok {
		return boundProducts(products, limit), nil
	}

	// Tier 2: durable store, serving stale data while a background
	// refresh runs.
	if products, ok := s.serveFromStore(ctx, userID, true); ok {
		return boundProducts(products, limit), nil
	}

	// Tier 3: synchronous computation. One at a time per user; whoever
	// loses the lock race rechecks the cheaper tiers before computing.
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	if products, ok := s.cache.GetUserProducts(ctx, userID); ok {
		return boundProducts(products, limit), nil
	}
	if products, ok := s.serveFromStore(ctx, userID, false); ok {
		return boundProducts(products, limit), nil
	}

	s.log.Warn("no stored recommendations, computing inline (slow path)", "user_id", userID)
	start := time.Now()

	products, err := s.computeAndStore(ctx, userID)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	s.log.Info("inline recommendation compute finished",
		"user_id", userID, "duration", elapsed, "products", len(products))
	if elapsed > s.cfg.SlowComputeThreshold {
		s.log.Warn("inline recommendation compute exceeded slow threshold",
			"user_id", userID, "duration", elapsed)
	}

	return boundProducts(products, limit), nil
}

// serveFromStore is the Tier 2 read: resolve the stored ranked id list
// against live products and repopulate the cache. Store read failures
// degrade to a miss so availability wins over strictness. When
// triggerStaleRefresh is set and the row is past the staleness
// threshold, exactly one background recomputation is scheduled while the
// stale data is still served.
func (s *recommendationService) serveFromStore(ctx context.Context, userID uuid.UUID, triggerStaleRefresh bool) ([]*types.Product, bool) {
	rec, err := s.recommendationRepo.GetByUser(ctx, nil, userID)
	if err != nil {
		if !errors.Is(err, repos.ErrNoStoredRecommendation) {
			s.log.Warn("stored recommendation read failed, treating as miss", "user_id", userID, "error", err)
		}
		return nil, false
	}

	if triggerStaleRefresh && time.Since(rec.UpdatedAt) > s.cfg.StaleThreshold {
		s.scheduleRefresh(userID)
	}

	ids := rec.ProductIDList()
	if len(ids) == 0 {
		return nil, false
	}

	products, err := s.resolveOrdered(ctx, ids)
	if err != nil {
		s.log.Warn("stored recommendation resolution failed, treating as miss", "user_id", userID, "error", err)
		return nil, false
	}
	if len(products) == 0 {
		// Everything the stored list referenced is gone; recompute.
		return nil, false
	}

	s.cache.SetUserProducts(ctx, userID, products, s.cfg.CacheTTL)
	return products, true
}

// scheduleRefresh starts at most one background recomputation per user
// at a time. The triggering request is never blocked and failures are
// only logged.
func (s *recommendationService) scheduleRefresh(userID uuid.UUID) {
	if _, inFlight := s.refreshInFlight.LoadOrStore(userID, struct{}{}); inFlight {
		return
	}
	go func() {
		defer s.refreshInFlight.Delete(userID)

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ComputeTimeout+5*time.Second)
		defer cancel()

		s.log.Info("background recommendation refresh started", "user_id", userID)
		if _, err := s.RefreshUserRecommendations(ctx, userID); err != nil {
			s.log.Error("background recommendation refresh failed", "user_id", userID, "error", err)
			return
		}
		s.log.Info("background recommendation refresh completed", "user_id", userID)
	}()
}

// computeAndStore runs the full pipeline, persists the ranked list, and
// warms the cache. The store write completes before the result is
// returned so subsequent Tier 2 reads observe it.
func (s *recommendationService) computeAndStore(ctx context.Context, userID uuid.UUID) ([]*types.Product, error) {
	rankedIDs, err := s.computeRankedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.recommendationRepo.Upsert(ctx, nil, userID, rankedIDs); err != nil {
		return nil, fmt.Errorf("persist recommendations: %w", err)
	}

	products, err := s.resolveOrdered(ctx, rankedIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve recommendations: %w", err)
	}

	s.cache.SetUserProducts(ctx, userID, products, s.cfg.CacheTTL)
	return products, nil
}

// computeRankedIDs fans the three candidate generators out concurrently
// under the compute timeout and fuses their output. Collaborative and
// content-based failures degrade to empty lists with a warning; the run
// only fails when the popularity fallback itself fails, so a user with
// zero signal still gets a ranking rather than an error.
func (s *recommendationService) computeRankedIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	computeCtx, cancel := context.WithTimeout(ctx, s.cfg.ComputeTimeout)
	defer cancel()

	exclude, err := s.interactionRepo.ProductIDsByUser(computeCtx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load interaction history: %w", err)
	}

	genLimit := s.cfg.TopK * 2

	var (
		collaborative, contentBased, popular []Candidate
		collaborativeErr, contentErr, popErr error
	)

	eg, egCtx := errgroup.WithContext(computeCtx)
	eg.Go(func() error {
		collaborative, collaborativeErr = s.collaborative.Generate(egCtx, userID, exclude, genLimit)
		return nil
	})
	eg.Go(func() error {
		contentBased, contentErr = s.contentBased.Generate(egCtx, userID, exclude, genLimit)
		return nil
	})
	eg.Go(func() error {
		popular, popErr = s.popular.Generate(egCtx, userID, exclude, s.cfg.TopK)
		return nil
	})
	_ = eg.Wait()

	if popErr != nil {
		return nil, fmt.Errorf("popularity generation: %w", popErr)
	}
	if collaborativeErr != nil {
		s.log.Warn("collaborative generation failed, degrading", "user_id", userID, "error", collaborativeErr)
		collaborative = nil
	}
	if contentErr != nil {
		s.log.Warn("content-based generation failed, degrading", "user_id", userID, "error", contentErr)
		contentBased = nil
	}

	return MergeCandidates(collaborative, contentBased, popular, s.cfg.TopK), nil
}

// resolveOrdered turns a ranked id list into live products, preserving
// the id order. The relational IN lookup gives no ordering, so results
// are re-sorted against the original sequence; ids that no longer
// resolve are dropped silently.
func (s *recommendationService) resolveOrdered(ctx context.Context, ids []uuid.UUID) ([]*types.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	products, err := s.productRepo.GetActiveByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	ordered := make([]*types.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

func (s *recommendationService) GetSimilarProducts(ctx context.Context, productID uuid.UUID, limit int) ([]*types.Product, error) {
	if limit <= 0 {
		limit = 6
	}

	if products, ok := s.cache.GetSimilarProducts(ctx, productID, limit); ok {
		return products, nil
	}

	product, err := s.productRepo.GetByID(ctx, nil, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if !product.IsActive || !product.Available || product.DeletedAt != nil {
		return nil, ErrProductNotFound
	}
	if product.CategoryID == nil {
		return []*types.Product{}, nil
	}

	similar, err := s.productRepo.SimilarByCategory(ctx, nil, *product.CategoryID, product.ID, limit)
	if err != nil {
		return nil, err
	}

	s.cache.SetSimilarProducts(ctx, productID, limit, similar, s.cfg.CacheTTL)
	return similar, nil
}

func (s *recommendationService) PopularProducts(ctx context.Context, limit int) ([]*types.Product, error) {
	if limit <= 0 {
		limit = s.cfg.TopK
	}
	rows, err := s.productRepo.PopularCandidates(ctx, nil, 0, 0, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProductID)
	}
	return s.resolveOrdered(ctx, ids)
}

func (s *recommendationService) TrackInteraction(userID, productID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		interaction := &types.Interaction{
			ID:        uuid.New(),
			UserID:    userID,
			ProductID: productID,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := s.interactionRepo.Create(ctx, nil, []*types.Interaction{interaction}); err != nil {
			s.log.Error("interaction tracking failed", "user_id", userID, "product_id", productID, "error", err)
			return
		}
		// Bound recommendation staleness in the UX; recomputation itself
		// stays opportunistic.
		s.cache.DeleteUser(ctx, userID)
	}()
}

func (s *recommendationService) RefreshUserRecommendations(ctx context.Context, userID uuid.UUID) (*types.Recommendation, error) {
	rankedIDs, err := s.computeRankedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec, err := s.recommendationRepo.Upsert(ctx, nil, userID, rankedIDs)
	if err != nil {
		return nil, fmt.Errorf("persist recommendations: %w", err)
	}
	// Drop the cache so the next read serves the fresh list from the store.
	s.cache.DeleteUser(ctx, userID)
	return rec, nil
}

func (s *recommendationService) BatchRefresh(ctx context.Context, since time.Time, limit int) (*BatchRefreshReport, error) {
	userIDs, err := s.interactionRepo.ActiveUserIDsSince(ctx, nil, since, limit)
	if err != nil {
		return nil, err
	}

	report := &BatchRefreshReport{Total: len(userIDs), Errors: []BatchRefreshError{}}
	for _, userID := range userIDs {
		if _, err := s.RefreshUserRecommendations(ctx, userID); err != nil {
			report.Errors = append(report.Errors, BatchRefreshError{UserID: userID, Error: err.Error()})
			continue
		}
		report.Updated++
	}
	return report, nil
}

func (s *recommendationService) HandleProductSoftDeleted(ctx context.Context, productID uuid.UUID) (int, error) {
	recs, err := s.recommendationRepo.ListContainingProduct(ctx, nil, productID)
	if err != nil {
		return 0, err
	}

	affected := 0
	for _, rec := range recs {
		ids := rec.ProductIDList()
		trimmed := make([]uuid.UUID, 0, len(ids))
		for _, id := range ids {
			if id != productID {
				trimmed = append(trimmed, id)
			}
		}
		if len(trimmed) == len(ids) {
			continue
		}
		if err := s.recommendationRepo.ReplaceProductIDs(ctx, nil, rec.ID, trimmed); err != nil {
			s.log.Error("stored recommendation trim failed", "recommendation_id", rec.ID, "product_id", productID, "error", err)
			continue
		}
		s.cache.DeleteUser(ctx, rec.UserID)
		affected++
	}

	s.cache.DeleteSimilarProducts(ctx, productID)

	if affected > 0 {
		s.log.Info("trimmed deleted product from stored recommendations", "product_id", productID, "affected_users", affected)
	}
	return affected, nil
}

func (s *recommendationService) GetStoredRecommendation(ctx context.Context, userID uuid.UUID) (*StoredRecommendationStatus, error) {
	rec, err := s.recommendationRepo.GetByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	return &StoredRecommendationStatus{
		Recommendation: rec,
		IsStale:        time.Since(rec.UpdatedAt) > s.cfg.StaleThreshold,
		StaleThreshold: s.cfg.StaleThreshold,
	}, nil
}

func (s *recommendationService) GetUserInteractions(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Interaction, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.interactionRepo.ListWithProducts(ctx, nil, userID, limit)
}

func (s *recommendationService) PurgeData(ctx context.Context) (*PurgeReport, error) {
	report := &PurgeReport{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if report.Interactions, err = s.interactionRepo.DeleteAll(ctx, tx); err != nil {
			return err
		}
		if report.Ratings, err = s.ratingRepo.DeleteByCommentPrefix(ctx, tx, "[Sample]"); err != nil {
			return err
		}
		if report.Recommendations, err = s.recommendationRepo.DeleteAll(ctx, tx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func boundProducts(products []*types.Product, limit int) []*types.Product {
	if limit > 0 && len(products) > limit {
		return products[:limit]
	}
	return products
}
