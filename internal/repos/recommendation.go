package repos

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/types"
)

// ErrNoStoredRecommendation is the Tier 2 miss: the user has never had a
// full recomputation persisted.
var ErrNoStoredRecommendation = errors.New("no stored recommendation for user")

type RecommendationRepo interface {
	GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Recommendation, error)

	// Upsert replaces the user's entire ranked list atomically (insert or
	// wholesale update, never a partial patch).
	Upsert(ctx context.Context, tx *gorm.DB, userID uuid.UUID, productIDs []uuid.UUID) (*types.Recommendation, error)

	// ListContainingProduct finds every stored row whose ranked list
	// references the product (jsonb containment).
	ListContainingProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.Recommendation, error)

	// ReplaceProductIDs overwrites one row's list in place, used by the
	// soft-delete sweep to persist a trimmed list.
	ReplaceProductIDs(ctx context.Context, tx *gorm.DB, recommendationID uuid.UUID, productIDs []uuid.UUID) error

	List(ctx context.Context, tx *gorm.DB, userID *uuid.UUID, page, pageSize int) ([]*types.Recommendation, int64, error)
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
	DeleteAll(ctx context.Context, tx *gorm.DB) (int64, error)
}

type recommendationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendationRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRepo {
	return &recommendationRepo{db: db, log: baseLog.With("repo", "RecommendationRepo")}
}

func (rr *recommendationRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return rr.db
}

func (rr *recommendationRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Recommendation, error) {
	var rec types.Recommendation
	err := rr.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoStoredRecommendation
		}
		return nil, err
	}
	return &rec, nil
}

func (rr *recommendationRepo) Upsert(ctx context.Context, tx *gorm.DB, userID uuid.UUID, productIDs []uuid.UUID) (*types.Recommendation, error) {
	raw, err := json.Marshal(productIDs)
	if err != nil {
		return nil, err
	}
	rec := &types.Recommendation{
		ID:         uuid.New(),
		UserID:     userID,
		ProductIDs: datatypes.JSON(raw),
		UpdatedAt:  time.Now().UTC(),
	}
	// RETURNING refreshes rec with the persisted row, so on the conflict
	// path the caller sees the existing row's id, not the candidate one.
	err = rr.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"product_ids", "updated_at"}),
		}, clause.Returning{}).
		Create(rec).Error
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (rr *recommendationRepo) ListContainingProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.Recommendation, error) {
	needle, err := json.Marshal([]uuid.UUID{productID})
	if err != nil {
		return nil, err
	}
	var results []*types.Recommendation
	err = rr.conn(tx).WithContext(ctx).
		Where("product_ids @> ?", datatypes.JSON(needle)).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *recommendationRepo) ReplaceProductIDs(ctx context.Context, tx *gorm.DB, recommendationID uuid.UUID, productIDs []uuid.UUID) error {
	if productIDs == nil {
		productIDs = []uuid.UUID{}
	}
	raw, err := json.Marshal(productIDs)
	if err != nil {
		return err
	}
	return rr.conn(tx).WithContext(ctx).
		Model(&types.Recommendation{}).
		Where("id = ?", recommendationID).
		Updates(map[string]interface{}{
			"product_ids": datatypes.JSON(raw),
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (rr *recommendationRepo) List(ctx context.Context, tx *gorm.DB, userID *uuid.UUID, page, pageSize int) ([]*types.Recommendation, int64, error) {
	query := rr.conn(tx).WithContext(ctx).Model(&types.Recommendation{})
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var results []*types.Recommendation
	err := query.
		Order("updated_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&results).Error
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (rr *recommendationRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64
	err := rr.conn(tx).WithContext(ctx).Model(&types.Recommendation{}).Count(&count).Error
	return count, err
}

func (rr *recommendationRepo) DeleteAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	result := rr.conn(tx).WithContext(ctx).
		Where("1 = 1").
		Delete(&types.Recommendation{})
	return result.RowsAffected, result.Error
}
