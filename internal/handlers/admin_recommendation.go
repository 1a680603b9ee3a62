package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/repos"
	"github.com/savoro/savoro-backend/internal/services"
)

// AdminRecommendationHandler exposes the operational surface: raw data
// inspection, system statistics, batch recomputation and sample-data
// cleanup. Routes are mounted behind the admin middleware.
type AdminRecommendationHandler struct {
	log             *logger.Logger
	recSvc          services.RecommendationService
	statsSvc        services.StatsService
	interactionRepo repos.InteractionRepo
	ratingRepo      repos.RatingRepo
	recRepo         repos.RecommendationRepo
	userRepo        repos.UserRepo
}

func NewAdminRecommendationHandler(
	log *logger.Logger,
	recSvc services.RecommendationService,
	statsSvc services.StatsService,
	interactionRepo repos.InteractionRepo,
	ratingRepo repos.RatingRepo,
	recRepo repos.RecommendationRepo,
	userRepo repos.UserRepo,
) *AdminRecommendationHandler {
	return &AdminRecommendationHandler{
		log:             log.With("handler", "AdminRecommendationHandler"),
		recSvc:          recSvc,
		statsSvc:        statsSvc,
		interactionRepo: interactionRepo,
		ratingRepo:      ratingRepo,
		recRepo:         recRepo,
		userRepo:        userRepo,
	}
}

// GET /api/admin/recommendations/statistics
func (h *AdminRecommendationHandler) GetStatistics(c *gin.Context) {
	days := queryInt(c, "days", 7)

	stats, err := h.statsSvc.SystemStats(c.Request.Context(), days)
	if err != nil {
		h.log.Error("statistics aggregation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GET /api/admin/interactions
func (h *AdminRecommendationHandler) ListInteractions(c *gin.Context) {
	filter := repos.InteractionFilter{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 50),
	}
	if userID, ok := queryUUID(c, "user_id"); ok {
		filter.UserID = &userID
	}
	if productID, ok := queryUUID(c, "product_id"); ok {
		filter.ProductID = &productID
	}
	if days := queryInt(c, "days", 0); days > 0 {
		since := time.Now().UTC().AddDate(0, 0, -days)
		filter.Since = &since
	}

	interactions, total, err := h.interactionRepo.ListFiltered(c.Request.Context(), nil, filter)
	if err != nil {
		h.log.Error("interaction listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list interactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"interactions": interactions,
		"total":        total,
		"page":         filter.Page,
		"page_size":    filter.PageSize,
	})
}

// GET /api/admin/ratings
func (h *AdminRecommendationHandler) ListRatings(c *gin.Context) {
	filter := repos.RatingFilter{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 50),
	}
	if userID, ok := queryUUID(c, "user_id"); ok {
		filter.UserID = &userID
	}
	if productID, ok := queryUUID(c, "product_id"); ok {
		filter.ProductID = &productID
	}
	if min := queryInt(c, "min_rating", 0); min > 0 {
		filter.MinRating = &min
	}

	ratings, total, err := h.ratingRepo.ListFiltered(c.Request.Context(), nil, filter)
	if err != nil {
		h.log.Error("rating listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list ratings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ratings":   ratings,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

// GET /api/admin/recommendations
func (h *AdminRecommendationHandler) ListStoredRecommendations(c *gin.Context) {
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 50)

	var userID *uuid.UUID
	if id, ok := queryUUID(c, "user_id"); ok {
		userID = &id
	}

	recs, total, err := h.recRepo.List(c.Request.Context(), nil, userID, page, pageSize)
	if err != nil {
		h.log.Error("stored recommendation listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list recommendations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recommendations": recs,
		"total":           total,
		"page":            page,
		"page_size":       pageSize,
	})
}

// GET /api/admin/recommendations/users/:id
func (h *AdminRecommendationHandler) GetUserStoredRecommendation(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	exists, err := h.userRepo.Exists(c.Request.Context(), nil, userID)
	if err != nil {
		h.log.Error("user lookup failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load user"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	status, err := h.recSvc.GetStoredRecommendation(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repos.ErrNoStoredRecommendation) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no stored recommendations for user"})
			return
		}
		h.log.Error("stored recommendation lookup failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load stored recommendations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recommendation":    status.Recommendation,
		"is_stale":          status.IsStale,
		"stale_after_hours": status.StaleThreshold.Hours(),
	})
}

type batchUpdateRequest struct {
	Days  int `json:"days"`
	Limit int `json:"limit"`
}

// POST /api/admin/recommendations/batch_update
// Recomputes stored recommendations for users active in the trailing
// window. Runs synchronously; the report lists per-user failures.
func (h *AdminRecommendationHandler) BatchUpdate(c *gin.Context) {
	// Body is optional; a missing or malformed one keeps the defaults.
	req := batchUpdateRequest{Days: 7, Limit: 500}
	_ = c.ShouldBindJSON(&req)
	if req.Days <= 0 {
		req.Days = 7
	}
	if req.Limit <= 0 {
		req.Limit = 500
	}

	since := time.Now().UTC().AddDate(0, 0, -req.Days)
	report, err := h.recSvc.BatchRefresh(c.Request.Context(), since, req.Limit)
	if err != nil {
		h.log.Error("batch recommendation update failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch update failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// DELETE /api/admin/recommendations/products/:id
// Removes a retired product from every stored list and drops its
// similarity cache. Called by catalog tooling after a soft delete.
func (h *AdminRecommendationHandler) RemoveProduct(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	affected, err := h.recSvc.HandleProductSoftDeleted(c.Request.Context(), productID)
	if err != nil {
		h.log.Error("product removal from recommendations failed", "product_id", productID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove product"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "product removed from recommendations", "affected_users": affected})
}

type purgeRequest struct {
	Confirm bool `json:"confirm"`
}

// DELETE /api/admin/data/sample
// Purges interactions, sample ratings and stored recommendations. The
// body must carry {"confirm": true}; this is not an operation to trip
// over.
func (h *AdminRecommendationHandler) PurgeSampleData(c *gin.Context) {
	var req purgeRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Confirm {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confirmation required"})
		return
	}

	report, err := h.recSvc.PurgeData(c.Request.Context())
	if err != nil {
		h.log.Error("sample data purge failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not purge data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "sample data purged", "deleted": report})
}

func queryUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
