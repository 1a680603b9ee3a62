package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/types"
)

// NeighborOverlap is a user ranked by how many interactions they share
// with the target user's product set.
type NeighborOverlap struct {
	UserID      uuid.UUID `gorm:"column:user_id"`
	CommonCount int64     `gorm:"column:common_count"`
}

// NeighborCandidate is a product surfaced from neighbor activity,
// aggregated across the neighbor set.
type NeighborCandidate struct {
	ProductID        uuid.UUID `gorm:"column:product_id"`
	InteractionCount int64     `gorm:"column:interaction_count"`
	AvgRating        *float64  `gorm:"column:avg_rating"`
}

// ProductVolume is a product with its interaction volume, for reporting.
type ProductVolume struct {
	ProductID        uuid.UUID `gorm:"column:product_id"`
	Name             string    `gorm:"column:name"`
	InteractionCount int64     `gorm:"column:interaction_count"`
}

// UserVolume is a user with their interaction volume, for reporting.
type UserVolume struct {
	UserID           uuid.UUID `gorm:"column:user_id"`
	Email            string    `gorm:"column:email"`
	InteractionCount int64     `gorm:"column:interaction_count"`
}

type InteractionFilter struct {
	UserID    *uuid.UUID
	ProductID *uuid.UUID
	Since     *time.Time
	Page      int
	PageSize  int
}

type InteractionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, interactions []*types.Interaction) ([]*types.Interaction, error)
	CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)

	// ProductIDsByUser returns the distinct product ids the user has ever
	// interacted with (the exclusion set for candidate generation).
	ProductIDsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)

	// RecentProductIDsByUser returns the user's most recently interacted
	// distinct product ids inside the window, newest first, bounded.
	RecentProductIDsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time, limit int) ([]uuid.UUID, error)

	// NeighborUserIDs ranks other users by overlap with the given product
	// set inside the window.
	NeighborUserIDs(ctx context.Context, tx *gorm.DB, productIDs []uuid.UUID, excludeUserID uuid.UUID, since time.Time, limit int) ([]NeighborOverlap, error)

	// NeighborCandidates aggregates what the neighbor set interacted with
	// inside the window, excluding the target user's own products, keeping
	// only live products, ordered by (interaction_count desc, avg_rating desc).
	NeighborCandidates(ctx context.Context, tx *gorm.DB, neighborIDs []uuid.UUID, excludeProductIDs []uuid.UUID, since time.Time, limit int) ([]NeighborCandidate, error)

	ListWithProducts(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Interaction, error)
	ListFiltered(ctx context.Context, tx *gorm.DB, filter InteractionFilter) ([]*types.Interaction, int64, error)

	Count(ctx context.Context, tx *gorm.DB) (int64, error)
	CountSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error)
	DistinctUserCount(ctx context.Context, tx *gorm.DB) (int64, error)
	DistinctUserCountSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error)
	DistinctProductCount(ctx context.Context, tx *gorm.DB) (int64, error)
	TopProductsSince(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]ProductVolume, error)
	TopUsersSince(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]UserVolume, error)
	ActiveUserIDsSince(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]uuid.UUID, error)

	DeleteAll(ctx context.Context, tx *gorm.DB) (int64, error)
}

type interactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInteractionRepo(db *gorm.DB, baseLog *logger.Logger) InteractionRepo {
	return &interactionRepo{db: db, log: baseLog.With("repo", "InteractionRepo")}
}

func (ir *interactionRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ir.db
}

func (ir *interactionRepo) Create(ctx context.Context, tx *gorm.DB, interactions []*types.Interaction) ([]*types.Interaction, error) {
	if len(interactions) == 0 {
		return []*types.Interaction{}, nil
	}
	if err := ir.conn(tx).WithContext(ctx).Create(&interactions).Error; err != nil {
		return nil, err
	}
	return interactions, nil
}

func (ir *interactionRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	var count int64
	err := ir.conn(tx).WithContext(ctx).
		Model(&types.Interaction{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (ir *interactionRepo) ProductIDsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := ir.conn(tx).WithContext(ctx).
		Model(&types.Interaction{}).
		Distinct("product_id").
		Where("user_id = ?", userID).
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (ir *interactionRepo) RecentProductIDsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := ir.conn(tx).WithContext(ctx).
		Model(&types.Interaction{}).
		Select("product_id").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Group("product_id").
		Order("MAX(created_at) DESC").
		Limit(limit).
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (ir *interactionRepo) NeighborUserIDs(ctx context.Context, tx *gorm.DB, productIDs []uuid.UUID, excludeUserID uuid.UUID, since time.Time, limit int) ([]NeighborOverlap, error) {
	var results []NeighborOverlap
	if len(productIDs) == 0 {
		return results, nil
	}
	err := ir.conn(tx).WithContext(ctx).
		Model(&types.Interaction{}).
		Select("user_id, COUNT(id) AS common_count").
		Where("product_id IN ? AND created_at >= ? AND user_id <> ?", productIDs, since, excludeUserID).
		Group("user_id").
		Order("common_count DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (ir *interactionRepo) NeighborCandidates(ctx context.Context, tx *gorm.DB, neighborIDs []uuid.UUID, excludeProductIDs []uuid.UUID, since time.Time, limit int) ([]NeighborCandidate, error) {
	var results []NeighborCandidate
	if len(neighborIDs) == 0 {
		return results, nil
	}
	query := ir.conn(tx).WithContext(ctx).
		Model(&types.Interaction{}).
		Select("interactions.product_id, COUNT(interactions.id) AS interaction_count, AVG(ratings.rating) AS avg_rating").
		Joins("JOIN products ON products.id = interactions.product_id").
		Joins("LEFT JOIN ratings ON ratings.product_id = interactions.product_id").
		Where("interactions.user_id IN ? AND interactions.created_at >= ?", neighborIDs, since).
		Where("products.is_active = TRUE AND products.available = TRUE AND products.deleted_at IS NULL")
	if len(excludeProductIDs) > 0 {
		query = query.Where("interactions.product_id NOT IN ?", excludeProductIDs)
	}
	err := query.
		Group("interactions.product_id").
		Order("interaction_count DESC, avg_rating DESC NULLS LAST").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (ir *interactionRepo) ListWithProducts(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Interaction, error) {
	var results []*types.Interaction
	err := ir.conn(tx).WithContext(ctx).
		Preload("Product").
		Preload("Product.Category").
		Joins("JOIN products ON products.id = interactions.product_id").
		Where("interactions.user_id = ? AND products.deleted_at IS NULL", userID).
		Order("interactions.created_at DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (ir *interactionRepo) ListFiltered(ctx context.Context, tx *gorm.DB, filter InteractionFilter) ([]*types.Interaction, int64, error) {
	query := ir.conn(tx).WithContext(ctx).Model(&types.Interaction{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var results []*types.Interaction
	err := query.
		Preload("Product").
		Preload("Product.Category").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&results).Error
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (ir *interactionRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64
	err := ir.conn(tx).WithContext(ctx).Model(&types.Interaction{}).Count(&count).Error
	return count, err
}

func (ir *interactionRepo) CountSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error) {
	var count int64
	err := ir.conn(tx).WithContext(ctx).
		Model(&types.Interaction{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (ir *interactionRepo) DistinctUserCount(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64
	err := ir.conn(tx).WithContext(ctx).
		Model(&types.Interaction{}).
		Distinct("user_id").
		Count(&count).Error
	return count, err
}

func (ir *interactionRepo) DistinctUserCountSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error) {
	var count int64
	err := ir.conn(tx).WithContext(ctx).
		Model(&types.Interaction{}).
		Distinct("user_id").
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (ir *interactionRepo) DistinctProductCount(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64
	err := ir.conn(tx).WithContext(ctx).
		Model(&types.Interaction{}).
		Distinct("product_id").
		Count(&count).Error
	return count, err
}

func (ir *interactionRepo) TopProductsSince(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]ProductVolume, error) {
	var results []ProductVolume
	err := ir.conn(tx).WithContext(ctx).
		Model(&types.Interaction{}).
		Select("interactions.product_id, products.name, COUNT(interactions.id) AS interaction_count").
		Joins("JOIN products ON products.id = interactions.product_id").
		Where("interactions.created_at >= ?", since).
		Group("interactions.product_id, products.name").
		Order("interaction_count DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (ir *interactionRepo) TopUsersSince(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]UserVolume, error) {
	var results []UserVolume
	err := ir.conn(tx).WithContext(ctx).
		Model(&types.Interaction{}).
		Select("interactions.user_id, users.email, COUNT(interactions.id) AS interaction_count").
		Joins("JOIN users ON users.id = interactions.user_id").
		Where("interactions.created_at >= ?", since).
		Group("interactions.user_id, users.email").
		Order("interaction_count DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (ir *interactionRepo) ActiveUserIDsSince(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := ir.conn(tx).WithContext(ctx).
		Model(&types.Interaction{}).
		Select("user_id").
		Where("created_at >= ?", since).
		Group("user_id").
		Order("MAX(created_at) DESC").
		Limit(limit).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (ir *interactionRepo) DeleteAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	result := ir.conn(tx).WithContext(ctx).
		Where("1 = 1").
		Delete(&types.Interaction{})
	return result.RowsAffected, result.Error
}
