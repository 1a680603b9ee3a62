package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/savoro/savoro-backend/internal/clients/redis"
	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/repos"
	"github.com/savoro/savoro-backend/internal/types"
)

var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// RatingService validates and records explicit product ratings. A new
// rating is a strong preference signal, so it also drops the rater's
// cached recommendations; the stored list refreshes opportunistically.
type RatingService interface {
	Create(ctx context.Context, userID, productID uuid.UUID, rating int, comment string) (*types.Rating, error)
}

type ratingService struct {
	db  *gorm.DB
	log *logger.Logger

	ratingRepo  repos.RatingRepo
	productRepo repos.ProductRepo
	cache       redis.RecommendationCache
}

func NewRatingService(
	db *gorm.DB,
	baseLog *logger.Logger,
	ratingRepo repos.RatingRepo,
	productRepo repos.ProductRepo,
	cache redis.RecommendationCache,
) RatingService {
	return &ratingService{
		db:          db,
		log:         baseLog.With("service", "RatingService"),
		ratingRepo:  ratingRepo,
		productRepo: productRepo,
		cache:       cache,
	}
}

func (s *ratingService) Create(ctx context.Context, userID, productID uuid.UUID, rating int, comment string) (*types.Rating, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	if _, err := s.productRepo.GetByID(ctx, nil, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	created, err := s.ratingRepo.Create(ctx, nil, &types.Rating{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Rating:    rating,
		Comment:   comment,
	})
	if err != nil {
		return nil, err
	}

	s.cache.DeleteUser(ctx, userID)
	s.log.Info("rating recorded", "user_id", userID, "product_id", productID, "rating", rating)
	return created, nil
}
