package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/types"
)

// liveProducts is the candidate-visibility filter: every product a
// recommendation may surface must pass it.
const liveProducts = "products.is_active = TRUE AND products.available = TRUE AND products.deleted_at IS NULL"

// RatedCandidate is a live product annotated with rating aggregates.
type RatedCandidate struct {
	ProductID   uuid.UUID `gorm:"column:product_id"`
	AvgRating   *float64  `gorm:"column:avg_rating"`
	RatingCount int64     `gorm:"column:rating_count"`
}

// PopularCandidate is a live product annotated with both interaction and
// rating volume.
type PopularCandidate struct {
	ProductID        uuid.UUID `gorm:"column:product_id"`
	InteractionCount int64     `gorm:"column:interaction_count"`
	AvgRating        *float64  `gorm:"column:avg_rating"`
	RatingCount      int64     `gorm:"column:rating_count"`
}

type ProductRepo interface {
	// GetActiveByIDs resolves ids to live products. Order of the result is
	// storage order, NOT the id order; callers re-sort against their own
	// ranking.
	GetActiveByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Product, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Product, error)
	CountActive(ctx context.Context, tx *gorm.DB) (int64, error)

	// CategoryIDsByProductIDs maps product ids to their category ids,
	// skipping uncategorized products.
	CategoryIDsByProductIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)

	// ContentCandidates returns live products in the preferred categories,
	// excluding the user's own history, keeping well-rated or never-rated
	// products, ordered by (avg_rating desc, rating_count desc).
	ContentCandidates(ctx context.Context, tx *gorm.DB, categoryIDs []uuid.UUID, excludeProductIDs []uuid.UUID, minAvgRating float64, limit int) ([]RatedCandidate, error)

	// PopularCandidates returns live products with minimum evidence
	// (interaction or rating volume), ordered by (interaction_count desc,
	// avg_rating desc).
	PopularCandidates(ctx context.Context, tx *gorm.DB, minInteractions, minRatings, limit int) ([]PopularCandidate, error)

	// SimilarByCategory returns live products sharing the category,
	// excluding the product itself, ordered by (avg_rating desc,
	// rating_count desc).
	SimilarByCategory(ctx context.Context, tx *gorm.DB, categoryID uuid.UUID, excludeProductID uuid.UUID, limit int) ([]*types.Product, error)
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{db: db, log: baseLog.With("repo", "ProductRepo")}
}

func (pr *productRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return pr.db
}

func (pr *productRepo) GetActiveByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Product, error) {
	var results []*types.Product
	if len(ids) == 0 {
		return results, nil
	}
	err := pr.conn(tx).WithContext(ctx).
		Preload("Category").
		Where("id IN ?", ids).
		Where(liveProducts).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *productRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Product, error) {
	var product types.Product
	err := pr.conn(tx).WithContext(ctx).
		Preload("Category").
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (pr *productRepo) CountActive(ctx context.Context, tx *gorm.DB) (int64, error) {
	var count int64
	err := pr.conn(tx).WithContext(ctx).
		Model(&types.Product{}).
		Where(liveProducts).
		Count(&count).Error
	return count, err
}

func (pr *productRepo) CategoryIDsByProductIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID)
	if len(ids) == 0 {
		return out, nil
	}
	var rows []types.Product
	err := pr.conn(tx).WithContext(ctx).
		Select("id, category_id").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.CategoryID != nil {
			out[row.ID] = *row.CategoryID
		}
	}
	return out, nil
}

func (pr *productRepo) ContentCandidates(ctx context.Context, tx *gorm.DB, categoryIDs []uuid.UUID, excludeProductIDs []uuid.UUID, minAvgRating float64, limit int) ([]RatedCandidate, error) {
	var results []RatedCandidate
	if len(categoryIDs) == 0 {
		return results, nil
	}
	query := pr.conn(tx).WithContext(ctx).
		Model(&types.Product{}).
		Select("products.id AS product_id, AVG(ratings.rating) AS avg_rating, COUNT(ratings.id) AS rating_count").
		Joins("LEFT JOIN ratings ON ratings.product_id = products.id").
		Where("products.category_id IN ?", categoryIDs).
		Where(liveProducts)
	if len(excludeProductIDs) > 0 {
		query = query.Where("products.id NOT IN ?", excludeProductIDs)
	}
	err := query.
		Group("products.id").
		Having("AVG(ratings.rating) >= ? OR COUNT(ratings.id) = 0", minAvgRating).
		Order("avg_rating DESC NULLS LAST, rating_count DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *productRepo) PopularCandidates(ctx context.Context, tx *gorm.DB, minInteractions, minRatings, limit int) ([]PopularCandidate, error) {
	var results []PopularCandidate
	err := pr.conn(tx).WithContext(ctx).
		Model(&types.Product{}).
		Select("products.id AS product_id, "+
			"COUNT(DISTINCT interactions.id) AS interaction_count, "+
			"AVG(ratings.rating) AS avg_rating, "+
			"COUNT(DISTINCT ratings.id) AS rating_count").
		Joins("LEFT JOIN interactions ON interactions.product_id = products.id").
		Joins("LEFT JOIN ratings ON ratings.product_id = products.id").
		Where(liveProducts).
		Group("products.id").
		Having("COUNT(DISTINCT interactions.id) >= ? OR COUNT(DISTINCT ratings.id) >= ?", minInteractions, minRatings).
		Order("interaction_count DESC, avg_rating DESC NULLS LAST").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *productRepo) SimilarByCategory(ctx context.Context, tx *gorm.DB, categoryID uuid.UUID, excludeProductID uuid.UUID, limit int) ([]*types.Product, error) {
	var results []*types.Product
	err := pr.conn(tx).WithContext(ctx).
		Preload("Category").
		Joins("LEFT JOIN ratings ON ratings.product_id = products.id").
		Where("products.category_id = ? AND products.id <> ?", categoryID, excludeProductID).
		Where(liveProducts).
		Group("products.id").
		Order("AVG(ratings.rating) DESC NULLS LAST, COUNT(ratings.id) DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
