package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestRecommendationRepo_GetByUserMissIsSentinel(t *testing.T) {
	tx, log := testDB(t)
	repo := NewRecommendationRepo(tx, log)

	_, err := repo.GetByUser(context.Background(), tx, uuid.New())
	if !errors.Is(err, ErrNoStoredRecommendation) {
		t.Fatalf("expected ErrNoStoredRecommendation, got %v", err)
	}
}

func TestRecommendationRepo_UpsertReplacesWholeList(t *testing.T) {
	tx, log := testDB(t)
	repo := NewRecommendationRepo(tx, log)
	ctx := context.Background()

	user := seedUser(t, tx, "user@example.com")
	first := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	second := []uuid.UUID{uuid.New()}

	if _, err := repo.Upsert(ctx, tx, user.ID, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := repo.Upsert(ctx, tx, user.ID, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rec, err := repo.GetByUser(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("GetByUser: %v", err)
	}
	got := rec.ProductIDList()
	if len(got) != 1 || got[0] != second[0] {
		t.Fatalf("expected the second list to fully replace the first, got %v", got)
	}

	total, err := repo.Count(ctx, tx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected one row per user after repeated upserts, got %d", total)
	}
}

func TestRecommendationRepo_UpsertReturnsPersistedRowID(t *testing.T) {
	tx, log := testDB(t)
	repo := NewRecommendationRepo(tx, log)
	ctx := context.Background()

	user := seedUser(t, tx, "user@example.com")

	first, err := repo.Upsert(ctx, tx, user.ID, []uuid.UUID{uuid.New()})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := repo.Upsert(ctx, tx, user.ID, []uuid.UUID{uuid.New()})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("conflict-path upsert returned id %s, row keeps %s", second.ID, first.ID)
	}

	stored, err := repo.GetByUser(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("GetByUser: %v", err)
	}
	if stored.ID != second.ID {
		t.Fatalf("returned id %s does not match persisted row %s", second.ID, stored.ID)
	}
}

func TestRecommendationRepo_UpsertPreservesRankingOrder(t *testing.T) {
	tx, log := testDB(t)
	repo := NewRecommendationRepo(tx, log)
	ctx := context.Background()

	user := seedUser(t, tx, "user@example.com")
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}

	if _, err := repo.Upsert(ctx, tx, user.ID, ids); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rec, err := repo.GetByUser(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("GetByUser: %v", err)
	}
	got := rec.ProductIDList()
	if len(got) != len(ids) {
		t.Fatalf("expected %d ids, got %d", len(ids), len(got))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Fatalf("position %d: expected %s got %s", i, ids[i], got[i])
		}
	}
}

func TestRecommendationRepo_ListContainingProductUsesContainment(t *testing.T) {
	tx, log := testDB(t)
	repo := NewRecommendationRepo(tx, log)
	ctx := context.Background()

	target := uuid.New()
	holder := seedUser(t, tx, "holder@example.com")
	bystander := seedUser(t, tx, "bystander@example.com")

	if _, err := repo.Upsert(ctx, tx, holder.ID, []uuid.UUID{uuid.New(), target}); err != nil {
		t.Fatalf("upsert holder: %v", err)
	}
	if _, err := repo.Upsert(ctx, tx, bystander.ID, []uuid.UUID{uuid.New()}); err != nil {
		t.Fatalf("upsert bystander: %v", err)
	}

	got, err := repo.ListContainingProduct(ctx, tx, target)
	if err != nil {
		t.Fatalf("ListContainingProduct: %v", err)
	}
	if len(got) != 1 || got[0].UserID != holder.ID {
		t.Fatalf("expected only the holder's row, got %+v", got)
	}
}

func TestRecommendationRepo_ReplaceProductIDsTrimsInPlace(t *testing.T) {
	tx, log := testDB(t)
	repo := NewRecommendationRepo(tx, log)
	ctx := context.Background()

	user := seedUser(t, tx, "user@example.com")
	keep := uuid.New()
	drop := uuid.New()

	if _, err := repo.Upsert(ctx, tx, user.ID, []uuid.UUID{keep, drop}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	stored, err := repo.GetByUser(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("GetByUser: %v", err)
	}

	if err := repo.ReplaceProductIDs(ctx, tx, stored.ID, []uuid.UUID{keep}); err != nil {
		t.Fatalf("ReplaceProductIDs: %v", err)
	}

	after, err := repo.GetByUser(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("GetByUser after replace: %v", err)
	}
	got := after.ProductIDList()
	if len(got) != 1 || got[0] != keep {
		t.Fatalf("expected trimmed list [keep], got %v", got)
	}
}
