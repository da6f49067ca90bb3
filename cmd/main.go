package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adcraft-ai/adcraft-backend/internal/clients/redis"
	"github.com/adcraft-ai/adcraft-backend/internal/db"
	"github.com/adcraft-ai/adcraft-backend/internal/http/handlers"
	"github.com/adcraft-ai/adcraft-backend/internal/observability"
	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/envutil"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/openai"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/pinecone"
	"github.com/adcraft-ai/adcraft-backend/internal/repos"
	"github.com/adcraft-ai/adcraft-backend/internal/server"
	"github.com/adcraft-ai/adcraft-backend/internal/services"
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

	observability.Init(log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	productRepo := repos.NewProductRepo(thePG, log)
	brandProfileRepo := repos.NewBrandProfileRepo(thePG, log)
	templateRepo := repos.NewTemplateRepo(thePG, log)
	analysisRepo := repos.NewAnalysisRepo(thePG, log)

	// Platform clients
	log.Info("Setting up platform clients...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	pineconeClient, err := pinecone.NewFromEnv(log)
	if err != nil {
		log.Error("Could not init Pinecone client", "error", err)
		os.Exit(1)
	}
	redisCache, err := redis.NewCache(log)
	if err != nil {
		// The durable tier is optional; the fast tier still works.
		log.Warn("Redis init failed, running with fast cache tier only", "error", err)
		redisCache = nil
	}

	// Services
	log.Info("Setting up services...")
	bootCtx := context.Background()
	enricher, err := services.NewGCPEnricher(bootCtx, log)
	if err != nil {
		log.Warn("Vision enricher init failed, continuing without", "error", err)
		enricher = nil
	}
	visionService := services.NewVisionService(log, openaiClient, enricher, analysisRepo)
	kbService := services.NewKnowledgeBaseService(log, openaiClient, pineconeClient)
	limiter := services.NewRateLimitRegistry(log, services.RateLimitConfig{})
	limiter.Start()
	defer limiter.Stop()
	responseCache := services.NewResponseCache(log, services.ResponseCacheConfig{Durable: redisCache})
	suggestionService := services.NewSuggestionService(log, services.SuggestionServiceDeps{
		Products:  productRepo,
		Brands:    brandProfileRepo,
		Templates: templateRepo,
		Vision:    visionService,
		KB:        kbService,
		AI:        openaiClient,
		Limiter:   limiter,
		Cache:     responseCache,
	})

	// Template catalog seed
	catalog := services.NewTemplateCatalog(log, templateRepo)
	if err := catalog.LoadSeed(bootCtx); err != nil {
		log.Warn("Template seed load failed", "error", err)
	}

	// Router
	router := server.NewRouter(server.RouterConfig{
		Log:               log,
		HealthHandler:     handlers.NewHealthHandler(),
		SuggestionHandler: handlers.NewSuggestionHandler(suggestionService),
	})

	addr := ":" + envutil.Str("PORT", "8080")
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Info("Server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown", "error", err)
	}
	if redisCache != nil {
		_ = redisCache.Close()
	}
}
