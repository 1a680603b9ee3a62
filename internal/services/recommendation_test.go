package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/repos"
	"github.com/savoro/savoro-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

// fakeCache is an in-memory RecommendationCache. Embedding keeps the
// interface satisfied; tests only touch the user-list and similar paths.
type fakeCache struct {
	mu       sync.Mutex
	users    map[uuid.UUID][]*types.Product
	similar  map[uuid.UUID][]*types.Product
	deletes  int
	setCalls int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		users:   make(map[uuid.UUID][]*types.Product),
		similar: make(map[uuid.UUID][]*types.Product),
	}
}

func (f *fakeCache) GetUserProducts(_ context.Context, userID uuid.UUID) ([]*types.Product, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	products, ok := f.users[userID]
	return products, ok
}

func (f *fakeCache) SetUserProducts(_ context.Context, userID uuid.UUID, products []*types.Product, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID] = products
	f.setCalls++
}

func (f *fakeCache) DeleteUser(_ context.Context, userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, userID)
	f.deletes++
}

func (f *fakeCache) GetSimilarProducts(_ context.Context, productID uuid.UUID, _ int) ([]*types.Product, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	products, ok := f.similar[productID]
	return products, ok
}

func (f *fakeCache) SetSimilarProducts(_ context.Context, productID uuid.UUID, _ int, products []*types.Product, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.similar[productID] = products
}

func (f *fakeCache) DeleteSimilarProducts(_ context.Context, productID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.similar, productID)
}

func (f *fakeCache) GetNeighborIDs(context.Context, uuid.UUID) ([]uuid.UUID, bool) { return nil, false }
func (f *fakeCache) SetNeighborIDs(context.Context, uuid.UUID, []uuid.UUID, time.Duration) {}
func (f *fakeCache) Close() error                                                          { return nil }

type fakeProductRepo struct {
	repos.ProductRepo
	mu       sync.Mutex
	products map[uuid.UUID]*types.Product
}

func newFakeProductRepo(products ...*types.Product) *fakeProductRepo {
	f := &fakeProductRepo{products: make(map[uuid.UUID]*types.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProductRepo) GetActiveByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Deliberately reversed: callers own the ordering.
	out := make([]*types.Product, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if p, ok := f.products[ids[i]]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeInteractionRepo struct {
	repos.InteractionRepo
	mu       sync.Mutex
	byUser   map[uuid.UUID][]uuid.UUID
	created  []*types.Interaction
	createCh chan struct{}
}

func newFakeInteractionRepo() *fakeInteractionRepo {
	return &fakeInteractionRepo{
		byUser:   make(map[uuid.UUID][]uuid.UUID),
		createCh: make(chan struct{}, 16),
	}
}

func (f *fakeInteractionRepo) ProductIDsByUser(_ context.Context, _ *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byUser[userID], nil
}

func (f *fakeInteractionRepo) Create(_ context.Context, _ *gorm.DB, interactions []*types.Interaction) ([]*types.Interaction, error) {
	f.mu.Lock()
	f.created = append(f.created, interactions...)
	f.mu.Unlock()
	for range interactions {
		f.createCh <- struct{}{}
	}
	return interactions, nil
}

type fakeRecommendationRepo struct {
	repos.RecommendationRepo
	mu      sync.Mutex
	rows    map[uuid.UUID]*types.Recommendation
	upserts int32
}

func newFakeRecommendationRepo() *fakeRecommendationRepo {
	return &fakeRecommendationRepo{rows: make(map[uuid.UUID]*types.Recommendation)}
}

func (f *fakeRecommendationRepo) GetByUser(_ context.Context, _ *gorm.DB, userID uuid.UUID) (*types.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rows[userID]
	if !ok {
		return nil, repos.ErrNoStoredRecommendation
	}
	return rec, nil
}

func (f *fakeRecommendationRepo) Upsert(_ context.Context, _ *gorm.DB, userID uuid.UUID, productIDs []uuid.UUID) (*types.Recommendation, error) {
	atomic.AddInt32(&f.upserts, 1)
	rec := &types.Recommendation{ID: uuid.New(), UserID: userID, UpdatedAt: time.Now().UTC()}
	if err := rec.SetProductIDs(productIDs); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.rows[userID] = rec
	f.mu.Unlock()
	return rec, nil
}

func (f *fakeRecommendationRepo) ListContainingProduct(_ context.Context, _ *gorm.DB, productID uuid.UUID) ([]*types.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Recommendation
	for _, rec := range f.rows {
		for _, id := range rec.ProductIDList() {
			if id == productID {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRecommendationRepo) ReplaceProductIDs(_ context.Context, _ *gorm.DB, recommendationID uuid.UUID, productIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.rows {
		if rec.ID == recommendationID {
			return rec.SetProductIDs(productIDs)
		}
	}
	return errors.New("recommendation not found")
}

func (f *fakeRecommendationRepo) upsertCount() int32 { return atomic.LoadInt32(&f.upserts) }

// fakeGenerator is a canned CandidateGenerator with call accounting.
type fakeGenerator struct {
	name       string
	candidates []Candidate
	err        error
	calls      int32
}

func (f *fakeGenerator) Name() string { return f.name }

func (f *fakeGenerator) Generate(context.Context, uuid.UUID, []uuid.UUID, int) ([]Candidate, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.candidates, f.err
}

func (f *fakeGenerator) callCount() int32 { return atomic.LoadInt32(&f.calls) }

type serviceFixture struct {
	svc       RecommendationService
	cache     *fakeCache
	products  *fakeProductRepo
	inter     *fakeInteractionRepo
	recs      *fakeRecommendationRepo
	collab    *fakeGenerator
	content   *fakeGenerator
	popular   *fakeGenerator
	catalogue []*types.Product
}

func newServiceFixture(t *testing.T, productCount int) *serviceFixture {
	t.Helper()

	catalogue := make([]*types.Product, 0, productCount)
	for i := 0; i < productCount; i++ {
		catalogue = append(catalogue, &types.Product{
			ID:        uuid.New(),
			Name:      "product",
			IsActive:  true,
			Available: true,
		})
	}

	cache := newFakeCache()
	products := newFakeProductRepo(catalogue...)
	inter := newFakeInteractionRepo()
	recs := newFakeRecommendationRepo()
	collab := &fakeGenerator{name: sourceCollaborative}
	content := &fakeGenerator{name: sourceContentBased}
	popular := &fakeGenerator{name: sourcePopular}
	for _, p := range catalogue {
		popular.candidates = append(popular.candidates, Candidate{ProductID: p.ID, Score: 1, Source: sourcePopular})
	}

	cfg := DefaultConfig()
	cfg.ComputeTimeout = 2 * time.Second
	svc := NewRecommendationService(nil, newTestLogger(t), cfg, cache,
		products, inter, nil, recs, collab, content, popular)

	return &serviceFixture{
		svc:       svc,
		cache:     cache,
		products:  products,
		inter:     inter,
		recs:      recs,
		collab:    collab,
		content:   content,
		popular:   popular,
		catalogue: catalogue,
	}
}

func TestGetUserRecommendations_CacheHitSkipsStoreAndCompute(t *testing.T) {
	fx := newServiceFixture(t, 3)
	userID := uuid.New()
	fx.cache.users[userID] = fx.catalogue

	got, err := fx.svc.GetUserRecommendations(context.Background(), userID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 products, got %d", len(got))
	}
	if fx.recs.upsertCount() != 0 || fx.popular.callCount() != 0 {
		t.Fatalf("cache hit must not reach store or compute")
	}
}

func TestGetUserRecommendations_StoreHitPreservesRankedOrder(t *testing.T) {
	fx := newServiceFixture(t, 4)
	userID := uuid.New()

	ids := make([]uuid.UUID, 0, len(fx.catalogue))
	for _, p := range fx.catalogue {
		ids = append(ids, p.ID)
	}
	if _, err := fx.recs.Upsert(context.Background(), nil, userID, ids); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	got, err := fx.svc.GetUserRecommendations(context.Background(), userID, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("expected %d products, got %d", len(ids), len(got))
	}
	// The product repo returns results reversed; the stored ranking must
	// still win.
	for i, p := range got {
		if p.ID != ids[i] {
			t.Fatalf("position %d: expected %s got %s", i, ids[i], p.ID)
		}
	}
	if fx.popular.callCount() != 0 {
		t.Fatalf("store hit must not compute")
	}
	if _, ok := fx.cache.GetUserProducts(context.Background(), userID); !ok {
		t.Fatalf("store hit must repopulate the cache")
	}
}

func TestGetUserRecommendations_StaleStoreServesAndRefreshesOnce(t *testing.T) {
	fx := newServiceFixture(t, 3)
	userID := uuid.New()

	ids := []uuid.UUID{fx.catalogue[0].ID, fx.catalogue[1].ID}
	if _, err := fx.recs.Upsert(context.Background(), nil, userID, ids); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	fx.recs.mu.Lock()
	fx.recs.rows[userID].UpdatedAt = time.Now().Add(-48 * time.Hour)
	fx.recs.mu.Unlock()
	baseline := fx.recs.upsertCount()

	// Both reads serve the stale list immediately.
	for i := 0; i < 2; i++ {
		got, err := fx.svc.GetUserRecommendations(context.Background(), userID, 10)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if len(got) != 2 {
			t.Fatalf("read %d: expected stale list of 2, got %d", i, len(got))
		}
		// Drop the cache so the second read hits the store again while
		// the refresh may still be in flight.
		fx.cache.DeleteUser(context.Background(), userID)
	}

	deadline := time.After(2 * time.Second)
	for fx.recs.upsertCount() == baseline {
		select {
		case <-deadline:
			t.Fatalf("background refresh never persisted")
		case <-time.After(10 * time.Millisecond):
		}
	}
	time.Sleep(50 * time.Millisecond)
	if n := fx.recs.upsertCount(); n != baseline+1 {
		t.Fatalf("expected exactly one background refresh, got %d", n-baseline)
	}
}

func TestGetUserRecommendations_ColdStartComputesFromPopularity(t *testing.T) {
	fx := newServiceFixture(t, 5)
	userID := uuid.New()

	got, err := fx.svc.GetUserRecommendations(context.Background(), userID, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 popularity fallback products, got %d", len(got))
	}
	if fx.recs.upsertCount() != 1 {
		t.Fatalf("inline compute must persist before returning")
	}
	if _, ok := fx.cache.GetUserProducts(context.Background(), userID); !ok {
		t.Fatalf("inline compute must warm the cache")
	}
}

func TestGetUserRecommendations_PersonalizedSourceFailureDegrades(t *testing.T) {
	fx := newServiceFixture(t, 3)
	fx.collab.err = errors.New("neighbor query blew up")
	userID := uuid.New()

	got, err := fx.svc.GetUserRecommendations(context.Background(), userID, 10)
	if err != nil {
		t.Fatalf("collaborative failure must degrade, got error: %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("expected popularity results despite collaborative failure")
	}
}

func TestGetUserRecommendations_PopularityFailureFailsCompute(t *testing.T) {
	fx := newServiceFixture(t, 3)
	fx.popular.err = errors.New("popularity query blew up")
	userID := uuid.New()

	if _, err := fx.svc.GetUserRecommendations(context.Background(), userID, 10); err == nil {
		t.Fatalf("expected error when the fallback source fails")
	}
}

func TestGetUserRecommendations_ConcurrentColdReadsComputeOnce(t *testing.T) {
	fx := newServiceFixture(t, 4)
	userID := uuid.New()

	const readers = 8
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := fx.svc.GetUserRecommendations(context.Background(), userID, 10); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent read failed: %v", err)
	}

	if n := fx.recs.upsertCount(); n != 1 {
		t.Fatalf("expected a single compute across %d concurrent readers, got %d", readers, n)
	}
}

func TestHandleProductSoftDeleted_TrimsStoredListsAndInvalidates(t *testing.T) {
	fx := newServiceFixture(t, 3)
	victim := fx.catalogue[1].ID

	userA := uuid.New()
	userB := uuid.New()
	if _, err := fx.recs.Upsert(context.Background(), nil, userA, []uuid.UUID{fx.catalogue[0].ID, victim}); err != nil {
		t.Fatalf("seed userA: %v", err)
	}
	if _, err := fx.recs.Upsert(context.Background(), nil, userB, []uuid.UUID{fx.catalogue[2].ID}); err != nil {
		t.Fatalf("seed userB: %v", err)
	}
	fx.cache.users[userA] = fx.catalogue

	affected, err := fx.svc.HandleProductSoftDeleted(context.Background(), victim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 affected user, got %d", affected)
	}
	for _, id := range fx.recs.rows[userA].ProductIDList() {
		if id == victim {
			t.Fatalf("deleted product still present in stored list")
		}
	}
	if _, ok := fx.cache.GetUserProducts(context.Background(), userA); ok {
		t.Fatalf("affected user's cache entry must be invalidated")
	}
	if got := fx.recs.rows[userB].ProductIDList(); len(got) != 1 {
		t.Fatalf("unaffected user's list must be untouched, got %v", got)
	}
}

func TestTrackInteraction_RecordsAsyncAndInvalidates(t *testing.T) {
	fx := newServiceFixture(t, 2)
	userID := uuid.New()
	fx.cache.users[userID] = fx.catalogue

	fx.svc.TrackInteraction(userID, fx.catalogue[0].ID)

	select {
	case <-fx.inter.createCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("interaction was never persisted")
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := fx.cache.GetUserProducts(context.Background(), userID); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("cache entry was never invalidated")
		case <-time.After(5 * time.Millisecond):
		}
	}

	fx.inter.mu.Lock()
	defer fx.inter.mu.Unlock()
	if len(fx.inter.created) != 1 || fx.inter.created[0].UserID != userID {
		t.Fatalf("unexpected recorded interactions: %+v", fx.inter.created)
	}
}

func TestGetUserRecommendations_StoredListOfDeadProductsRecomputes(t *testing.T) {
	fx := newServiceFixture(t, 3)
	userID := uuid.New()

	// Stored ids that no longer resolve to live products.
	if _, err := fx.recs.Upsert(context.Background(), nil, userID, []uuid.UUID{uuid.New(), uuid.New()}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	got, err := fx.svc.GetUserRecommendations(context.Background(), userID, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected a fresh popularity list, got %d products", len(got))
	}
	if fx.popular.callCount() == 0 {
		t.Fatalf("expected a recompute when the stored list is fully dead")
	}
}
