package main

import (
	"fmt"
	"os"

	redisclient "github.com/savoro/savoro-backend/internal/clients/redis"
	"github.com/savoro/savoro-backend/internal/db"
	"github.com/savoro/savoro-backend/internal/handlers"
	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/middleware"
	"github.com/savoro/savoro-backend/internal/repos"
	"github.com/savoro/savoro-backend/internal/server"
	"github.com/savoro/savoro-backend/internal/services"
	"github.com/savoro/savoro-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	allowedOrigins := server.SplitOrigins(utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log))
	recCfg := services.ConfigFromEnv(log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis
	cache, err := redisclient.NewRecommendationCache(log)
	if err != nil {
		log.Error("Redis init failed", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	interactionRepo := repos.NewInteractionRepo(thePG, log)
	ratingRepo := repos.NewRatingRepo(thePG, log)
	productRepo := repos.NewProductRepo(thePG, log)
	recommendationRepo := repos.NewRecommendationRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	collaborative := services.NewCollaborativeGenerator(log, interactionRepo, cache, recCfg)
	contentBased := services.NewContentBasedGenerator(log, productRepo, ratingRepo, recCfg)
	popular := services.NewPopularityGenerator(log, productRepo, recCfg)

	recService := services.NewRecommendationService(
		thePG,
		log,
		recCfg,
		cache,
		productRepo,
		interactionRepo,
		ratingRepo,
		recommendationRepo,
		collaborative,
		contentBased,
		popular,
	)
	ratingService := services.NewRatingService(thePG, log, ratingRepo, productRepo, cache)
	statsService := services.NewStatsService(thePG, log, interactionRepo, ratingRepo, productRepo, recommendationRepo)

	// Handlers
	log.Info("Setting up handlers from main...")
	recHandler := handlers.NewRecommendationHandler(log, recService)
	ratingHandler := handlers.NewRatingHandler(log, ratingService)
	adminHandler := handlers.NewAdminRecommendationHandler(log, recService, statsService, interactionRepo, ratingRepo, recommendationRepo, userRepo)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AllowedOrigins:        allowedOrigins,
		AuthMiddleware:        authMiddleware,
		RecommendationHandler: recHandler,
		RatingHandler:         ratingHandler,
		AdminHandler:          adminHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
