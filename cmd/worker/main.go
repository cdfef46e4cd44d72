package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"cloudvps-backend/internal/config"
	"cloudvps-backend/internal/handlers"
	"cloudvps-backend/internal/middleware"
	"cloudvps-backend/internal/services"
)

// The edge function: GitHub Actions proxy plus connection webhook store.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GitHubToken == "" || cfg.GitHubOwner == "" || cfg.GitHubRepo == "" {
		log.Fatalf("GITHUB_TOKEN, GITHUB_OWNER and GITHUB_REPO are required")
	}
	if cfg.WebhookSecret == "" {
		log.Println("WARNING: WEBHOOK_SECRET not set - the connection webhook will reject every call")
	}

	var kv services.KeyValueStore
	if cfg.RedisURL != "" {
		redisService, err := services.NewRedisService(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisService.Close()
		kv = redisService
	} else {
		log.Println("REDIS_URL not set - using in-memory KV")
		kv = services.NewMemoryKV()
	}

	proxy := services.NewProxyService(cfg, services.NewGitHubClient(cfg), kv)
	proxyHandler := handlers.NewProxyHandler(proxy)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(middleware.CORS("GET,POST,OPTIONS"))
	proxyHandler.Register(router)
	router.NoRoute(proxyHandler.NotFound)
	router.NoMethod(proxyHandler.NotFound)

	log.Printf("Edge function starting on port %s", cfg.WorkerPort)
	if err := router.Run(":" + cfg.WorkerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
