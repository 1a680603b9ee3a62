package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/types"
)

// ErrAlreadyRated is returned when a (user, product) pair already has a
// rating. The first rating wins; resubmissions are rejected, not merged.
var ErrAlreadyRated = errors.New("rating already exists for this user and product")

const uniqueViolationCode = "23505"

type RatingFilter struct {
	UserID    *uuid.UUID
	ProductID *uuid.UUID
	MinRating *int
	Since     *time.Time
	Page      int
	PageSize  int
}

type RatingRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rating *types.Rating) (*types.Rating, error)
	MapByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (map[uuid.UUID]int, error)
	ListFiltered(ctx context.Context, tx *gorm.DB, filter RatingFilter) ([]*types.Rating, int64, error)
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
	Average(ctx context.Context, tx *gorm.DB) (float64, error)
	DeleteByCommentPrefix(ctx context.Context, tx *gorm.DB, prefix string) (int64, error)
}

type ratingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRatingRepo(db *gorm.DB, baseLog *logger.Logger) RatingRepo {
	return &ratingRepo{db: db, log: baseLog.With("repo", "RatingRepo")}
}

func (rr *ratingRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return rr.db
}

func (rr *ratingRepo) Create(ctx context.Context, tx *gorm.DB, rating *types.Rating) (*types.Rating, error) {
	if err := rr.conn(tx).WithContext(ctx).Create(rating).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, ErrAlreadyRated
		}
		return nil, err
	}
	return rating, nil
}

func (rr *ratingRepo) MapByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []types.Rating
	err := rr.conn(tx).WithContext(ctx).
		Select("product_id, rating").
		Where("user_id = ?", userID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.Rating
	}
	return out, nil
}

func (rr *ratingRepo) ListFiltered(ctx context.Context, tx *gorm.DB, filter RatingFilter) ([]*types.Rating, int64, error) {
	query := rr.conn(tx).WithContext(ctx).Model(&types.Rating{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.MinRating != nil {
		query = query.Where("rating >= ?", *filter.MinRating)
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

	var results []*types.Rating
	err := query.
		Preload("Product").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&results).Error
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (rr *ratingRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64
	err := rr.conn(tx).WithContext(ctx).Model(&types.Rating{}).Count(&count).Error
	return count, err
}

func (rr *ratingRepo) Average(ctx context.Context, tx *gorm.DB) (float64, error) {
	var avg *float64
	err := rr.conn(tx).WithContext(ctx).
		Model(&types.Rating{}).
		Select("AVG(rating)").
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (rr *ratingRepo) DeleteByCommentPrefix(ctx context.Context, tx *gorm.DB, prefix string) (int64, error) {
	result := rr.conn(tx).WithContext(ctx).
		Where("comment LIKE ?", prefix+"%").
		Delete(&types.Rating{})
	return result.RowsAffected, result.Error
}
