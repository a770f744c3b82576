package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/homie43/car-fit-chat-backend/internal/chat"
	"github.com/homie43/car-fit-chat-backend/internal/config"
	"github.com/homie43/car-fit-chat-backend/internal/extract"
	"github.com/homie43/car-fit-chat-backend/internal/handler"
	"github.com/homie43/car-fit-chat-backend/internal/llm"
	"github.com/homie43/car-fit-chat-backend/internal/rag"
	"github.com/homie43/car-fit-chat-backend/internal/ratelimit"
	"github.com/homie43/car-fit-chat-backend/internal/repository"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Print version info
	log.Printf("Car Fit Chat Backend")
	log.Printf("Version: %s", Version)
	log.Printf("Build Time: %s", BuildTime)
	log.Printf("Git Commit: %s", GitCommit)
	log.Println("")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Initialize database connection
	repo, err := repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	log.Println("✅ Connected to PostgreSQL database")

	// Initialize OpenAI client
	llmClient := llm.NewClient(cfg.OpenAI)
	if llmClient.Enabled() {
		log.Printf("✅ OpenAI client initialized")
		log.Printf("   - API Base: %s", cfg.OpenAI.APIBase)
		log.Printf("   - Chat model: %s", cfg.OpenAI.ChatModel)
		log.Printf("   - Embedding model: %s", cfg.OpenAI.EmbeddingModel)
		log.Printf("   - Chat Temperature: %.2f", cfg.OpenAI.ChatTemperature)
		log.Printf("   - Chat MaxTokens: %d", cfg.OpenAI.ChatMaxTokens)
	} else {
		log.Fatal("OpenAI is disabled - set OPENAI_API_KEY to run the assistant")
	}

	// The semantic fallback needs embeddings; the client provides them.
	var embedder rag.Embedder
	if cfg.OpenAI.EmbeddingModel != "" {
		embedder = llmClient
	}

	// Initialize services
	extractor := extract.NewExtractor(cfg.Chat.YearMin, cfg.Chat.YearMax)
	builder := rag.NewBuilder(repo, embedder, cfg.Chat.ContextLimit)

	var limiter chat.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewUserLimiter(
			cfg.RateLimit.PerMinute,
			cfg.RateLimit.Burst,
			time.Duration(cfg.RateLimit.IdleTTLMin)*time.Minute,
		)
		log.Printf("✅ Rate limiting enabled: %.0f req/min, burst %d", cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	}

	chatService := chat.NewService(
		cfg.Chat,
		extractor,
		builder,
		llmClient,
		chat.AllowAll{},
		repo,
		repo,
		limiter,
	)

	log.Println("✅ Services initialized")

	// Backfill missing catalog embeddings in the background so the semantic
	// fallback has vectors to work with.
	if embedder != nil {
		go backfillEmbeddings(repo, llmClient)
	}

	// Initialize handlers
	chatHandler := handler.NewChatHandler(chatService)
	preferencesHandler := handler.NewPreferencesHandler(chatService)

	// Setup Gin router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":     "healthy",
			"service":    "car-fit-chat-backend",
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// API routes
	apiV1 := router.Group("/api/v1")
	{
		// Conversation endpoints
		apiV1.POST("/chat", chatHandler.Chat)
		apiV1.POST("/chat/stream", chatHandler.ChatStream) // Streaming chat

		// Preference endpoints
		apiV1.GET("/preferences/:user_id", preferencesHandler.Get)
		apiV1.DELETE("/preferences/:user_id", preferencesHandler.Delete)
	}

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("🚀 Starting server on %s", addr)
	log.Printf("📝 API: http://localhost:%d/api/v1", cfg.Server.Port)

	// Graceful shutdown
	go func() {
		if err := router.Run(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	log.Println("✅ Server stopped")
}

// backfillEmbeddings embeds described catalog rows that have no vector yet,
// one batch at a time.
func backfillEmbeddings(repo *repository.PostgresRepository, client *llm.Client) {
	const batchSize = 50
	ctx := context.Background()
	total := 0

	for {
		vehicles, err := repo.ListVehiclesWithoutEmbedding(ctx, batchSize)
		if err != nil {
			log.Printf("Warning: embedding backfill query failed: %v", err)
			return
		}
		if len(vehicles) == 0 {
			break
		}

		for _, v := range vehicles {
			text := fmt.Sprintf("%s %s %s. %s", v.Marka, v.Model, v.Variant, *v.Description)
			vec, err := client.Embed(ctx, text)
			if err != nil {
				log.Printf("Warning: embedding failed for vehicle %d: %v", v.ID, err)
				return
			}
			if err := repo.UpdateEmbedding(ctx, v.ID, vec); err != nil {
				log.Printf("Warning: failed to store embedding for vehicle %d: %v", v.ID, err)
				return
			}
			total++
		}
	}

	if total > 0 {
		log.Printf("✅ Backfilled %d catalog embeddings", total)
	}
}
