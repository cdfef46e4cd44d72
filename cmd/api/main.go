package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"cloudvps-backend/internal/config"
	"cloudvps-backend/internal/handlers"
	"cloudvps-backend/internal/middleware"
	"cloudvps-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.AdminUserIDs) == 0 {
		log.Println("ADMIN_USER_IDS not set - whole-document data tools are disabled")
	}

	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisService.Close()
	}

	var store services.DocumentStore
	switch cfg.StorageBackend {
	case "redis":
		store = redisService
	case "sqlite":
		if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
			log.Fatalf("Failed to create storage dir: %v", err)
		}
		sqliteStore, err := services.NewSQLiteStore(filepath.Join(cfg.StoragePath, "cloudvps.db"), cfg.StorageKey)
		if err != nil {
			log.Fatalf("Failed to open SQLite store: %v", err)
		}
		defer sqliteStore.Close()
		store = sqliteStore
	default:
		fileStore, err := services.NewFileStore(cfg.StoragePath, cfg.StorageKey)
		if err != nil {
			log.Fatalf("Failed to open file store: %v", err)
		}
		store = fileStore
	}

	jwtService := services.NewJWTService(cfg)
	hub := handlers.NewWebSocketHub()

	opts := []services.EngineOption{
		services.WithBroadcaster(hub),
		services.WithDebounce(cfg.PersistDebounce),
		services.WithSimulatedDelay(cfg.SimulateDelayMin, cfg.SimulateDelayMax),
	}
	if cfg.EdgeURL != "" {
		opts = append(opts, services.WithEdgeClient(services.NewEdgeClient(cfg.EdgeURL)))
	}

	loadCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	engine, err := services.NewEngine(loadCtx, store, opts...)
	cancel()
	if err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	scheduler, err := services.NewScheduler(engine)
	if err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	scheduler.Start()

	authHandler := handlers.NewAuthHandler(engine, jwtService, !cfg.IsProduction())
	userHandler := handlers.NewUserHandler(engine)
	gameHandler := handlers.NewGameHandler(engine)
	instanceHandler := handlers.NewInstanceHandler(engine)
	sessionHandler := handlers.NewRemoteSessionHandler(engine)
	dataHandler := handlers.NewDataHandler(engine)
	wsHandler := handlers.NewWebSocketHandler(engine, hub)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(middleware.CORS("GET,POST,PUT,DELETE,OPTIONS"))

	router.GET("/health", dataHandler.Health)
	router.GET("/catalog", instanceHandler.GetCatalog)
	router.GET("/catalog/quote", instanceHandler.GetQuote)

	auth := router.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/social", authHandler.SocialLogin)
		auth.POST("/forgot", authHandler.ForgotPassword)
		auth.POST("/reset", authHandler.ResetPassword)
	}

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	if redisService != nil {
		protected.Use(middleware.RateLimitMiddleware(redisService))
	}
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.PUT("/me", userHandler.UpdateProfile)
		protected.POST("/me/2fa", userHandler.Toggle2FA)
		protected.PUT("/me/ui", userHandler.SetUIState)
		protected.PUT("/prefs", userHandler.SetPrefs)
		protected.POST("/logout", authHandler.Logout)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		protected.GET("/balance", userHandler.GetBalance)
		protected.GET("/ledger", userHandler.GetLedger)

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", userHandler.GetNotifications)
			notifications.POST("/read", userHandler.MarkAllRead)
			notifications.DELETE("", userHandler.ClearNotifications)
		}

		tasks := protected.Group("/tasks")
		{
			tasks.GET("", gameHandler.GetTaskStatus)
			tasks.POST("/:type", gameHandler.RunTask)
		}

		protected.GET("/offers", gameHandler.GetOffers)
		protected.POST("/offers/:id/complete", gameHandler.CompleteOffer)
		protected.POST("/promo", gameHandler.RedeemPromo)
		protected.POST("/referral", gameHandler.SimulateReferral)

		achievements := protected.Group("/achievements")
		{
			achievements.GET("", gameHandler.GetAchievements)
			achievements.POST("/claim-all", gameHandler.ClaimAllAchievements)
			achievements.POST("/:id/claim", gameHandler.ClaimAchievement)
		}

		instances := protected.Group("/instances")
		{
			instances.GET("", instanceHandler.ListInstances)
			instances.POST("", instanceHandler.CreateInstance)
			instances.POST("/:id/select", instanceHandler.SelectInstance)
			instances.POST("/:id/start", instanceHandler.StartInstance)
			instances.POST("/:id/stop", instanceHandler.StopInstance)
			instances.POST("/:id/extend", instanceHandler.ExtendInstance)
			instances.DELETE("/:id", instanceHandler.DestroyInstance)
		}

		sessions := protected.Group("/sessions")
		{
			sessions.GET("/options", sessionHandler.GetOptions)
			sessions.GET("", sessionHandler.ListSessions)
			sessions.POST("", sessionHandler.StartSession)
			sessions.POST("/:id/sync", sessionHandler.SyncSession)
			sessions.POST("/:id/cancel", sessionHandler.CancelSession)
		}

		data := protected.Group("/data")
		{
			data.GET("/export", dataHandler.Export)
			data.POST("/import", dataHandler.Import)
			data.POST("/reset", dataHandler.Reset)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.AdminOnly(cfg.AdminUserIDs))
		{
			admin.GET("/export", dataHandler.AdminExport)
			admin.POST("/import", dataHandler.AdminImport)
			admin.POST("/reset", dataHandler.AdminReset)
		}
	}

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	scheduler.Stop()
	engine.Close(ctx)
}
