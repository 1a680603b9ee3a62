package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/repos"
	"github.com/savoro/savoro-backend/internal/requestdata"
	"github.com/savoro/savoro-backend/internal/services"
)

type RecommendationHandler struct {
	log    *logger.Logger
	recSvc services.RecommendationService
}

func NewRecommendationHandler(log *logger.Logger, recSvc services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{
		log:    log.With("handler", "RecommendationHandler"),
		recSvc: recSvc,
	}
}

// GET /api/recommendations
// Personalized product list for the authenticated user.
func (h *RecommendationHandler) GetMyRecommendations(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	limit := queryInt(c, "limit", 0)

	products, err := h.recSvc.GetUserRecommendations(c.Request.Context(), rd.UserID, limit)
	if err != nil {
		h.log.Error("recommendation lookup failed", "user_id", rd.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load recommendations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": products, "count": len(products)})
}

// POST /api/recommendations/refresh
// Synchronously recomputes the caller's stored recommendations.
func (h *RecommendationHandler) RefreshMyRecommendations(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	rec, err := h.recSvc.RefreshUserRecommendations(c.Request.Context(), rd.UserID)
	if err != nil {
		h.log.Error("recommendation refresh failed", "user_id", rd.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not refresh recommendations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "recommendations updated",
		"count":      len(rec.ProductIDList()),
		"updated_at": rec.UpdatedAt,
	})
}

// GET /api/recommendations/stored
// Raw stored row plus staleness, for debugging ranking issues.
func (h *RecommendationHandler) GetMyStoredRecommendation(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	status, err := h.recSvc.GetStoredRecommendation(c.Request.Context(), rd.UserID)
	if err != nil {
		if errors.Is(err, repos.ErrNoStoredRecommendation) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no stored recommendations"})
			return
		}
		h.log.Error("stored recommendation lookup failed", "user_id", rd.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load stored recommendations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recommendation":    status.Recommendation,
		"is_stale":          status.IsStale,
		"stale_after_hours": status.StaleThreshold.Hours(),
	})
}

// GET /api/products/:id/similar
// Products sharing the category of the given product. Public.
func (h *RecommendationHandler) GetSimilarProducts(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	limit := queryInt(c, "limit", 0)

	products, err := h.recSvc.GetSimilarProducts(c.Request.Context(), productID, limit)
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		h.log.Error("similar product lookup failed", "product_id", productID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load similar products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"similar_products": products, "count": len(products)})
}

// GET /api/products/popular
// Globally popular products. Public.
func (h *RecommendationHandler) GetPopularProducts(c *gin.Context) {
	limit := queryInt(c, "limit", 0)

	products, err := h.recSvc.PopularProducts(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("popular product lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load popular products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"popular_products": products, "count": len(products)})
}

type trackInteractionRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
}

// POST /api/interactions
// Records a product view/click. Tracking is fire-and-forget on the
// service side, so a well-formed request always answers 201.
func (h *RecommendationHandler) TrackInteraction(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	var req trackInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}

	h.recSvc.TrackInteraction(rd.UserID, req.ProductID)
	c.JSON(http.StatusCreated, gin.H{"message": "interaction recorded"})
}

// GET /api/interactions
// Most recent interactions of the caller, newest first.
func (h *RecommendationHandler) GetMyInteractions(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	limit := queryInt(c, "limit", 0)

	interactions, err := h.recSvc.GetUserInteractions(c.Request.Context(), rd.UserID, limit)
	if err != nil {
		h.log.Error("interaction history lookup failed", "user_id", rd.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load interactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"interactions": interactions, "count": len(interactions)})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
