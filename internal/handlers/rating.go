package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/repos"
	"github.com/savoro/savoro-backend/internal/requestdata"
	"github.com/savoro/savoro-backend/internal/services"
)

type RatingHandler struct {
	log       *logger.Logger
	ratingSvc services.RatingService
}

func NewRatingHandler(log *logger.Logger, ratingSvc services.RatingService) *RatingHandler {
	return &RatingHandler{
		log:       log.With("handler", "RatingHandler"),
		ratingSvc: ratingSvc,
	}
}

type createRatingRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Rating    int       `json:"rating" binding:"required"`
	Comment   string    `json:"comment"`
}

// POST /api/ratings
func (h *RatingHandler) CreateRating(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	var req createRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id and rating are required"})
		return
	}

	rating, err := h.ratingSvc.Create(c.Request.Context(), rd.UserID, req.ProductID, req.Rating, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRating):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		case errors.Is(err, repos.ErrAlreadyRated):
			c.JSON(http.StatusConflict, gin.H{"error": "product already rated"})
		default:
			h.log.Error("rating creation failed", "user_id", rd.UserID, "product_id", req.ProductID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create rating"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rating": rating})
}
