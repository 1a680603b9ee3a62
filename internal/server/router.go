package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/savoro/savoro-backend/internal/handlers"
	"github.com/savoro/savoro-backend/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins []string

	AuthMiddleware        *middleware.AuthMiddleware
	RecommendationHandler *handlers.RecommendationHandler
	RatingHandler         *handlers.RatingHandler
	AdminHandler          *handlers.AdminRecommendationHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	{
		api.GET("/products/popular", cfg.RecommendationHandler.GetPopularProducts)
		api.GET("/products/:id/similar", cfg.RecommendationHandler.GetSimilarProducts)
	}

	// Protected
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protected.GET("/recommendations", cfg.RecommendationHandler.GetMyRecommendations)
		protected.POST("/recommendations/refresh", cfg.RecommendationHandler.RefreshMyRecommendations)
		protected.GET("/recommendations/stored", cfg.RecommendationHandler.GetMyStoredRecommendation)
		protected.POST("/interactions", cfg.RecommendationHandler.TrackInteraction)
		protected.GET("/interactions", cfg.RecommendationHandler.GetMyInteractions)
		protected.POST("/ratings", cfg.RatingHandler.CreateRating)
	}

	// Admin
	admin := protected.Group("/admin")
	admin.Use(cfg.AuthMiddleware.RequireAdmin())
	{
		admin.GET("/recommendations", cfg.AdminHandler.ListStoredRecommendations)
		admin.GET("/recommendations/statistics", cfg.AdminHandler.GetStatistics)
		admin.GET("/recommendations/users/:id", cfg.AdminHandler.GetUserStoredRecommendation)
		admin.POST("/recommendations/batch_update", cfg.AdminHandler.BatchUpdate)
		admin.DELETE("/recommendations/products/:id", cfg.AdminHandler.RemoveProduct)
		admin.GET("/interactions", cfg.AdminHandler.ListInteractions)
		admin.GET("/ratings", cfg.AdminHandler.ListRatings)
		admin.DELETE("/data/sample", cfg.AdminHandler.PurgeSampleData)
	}

	return router
}

// SplitOrigins parses a comma separated origin list from the
// environment into the form the CORS middleware wants.
func SplitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
