package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"harambee/mutual-aid/mutual-aid-backend/internal/auth"
	"harambee/mutual-aid/mutual-aid-backend/internal/config"
	"harambee/mutual-aid/mutual-aid-backend/internal/deathreports"
	"harambee/mutual-aid/mutual-aid-backend/internal/documents"
	"harambee/mutual-aid/mutual-aid-backend/internal/members"
	"harambee/mutual-aid/mutual-aid-backend/internal/notifications"
	nwebsocket "harambee/mutual-aid/mutual-aid-backend/internal/notifications/websocket"
	"harambee/mutual-aid/mutual-aid-backend/internal/payments"
	"harambee/mutual-aid/mutual-aid-backend/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to MongoDB
	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connectCancel()
	client, err := mongo.Connect(connectCtx, mongooptions.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer client.Disconnect(context.Background())
	if err := client.Ping(connectCtx, nil); err != nil {
		logger.Fatal("failed to ping mongodb", zap.Error(err))
	}
	db := client.Database(cfg.Mongo.Database)

	// AWS clients for documents and notification channels
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Fatal("failed to load aws configuration", zap.Error(err))
	}
	store := documents.NewS3Store(s3.NewFromConfig(awsCfg), cfg.AWS.DocumentBucket)

	// Member registry
	registry := members.NewMongoRegistry(db)

	// Notification bus and delivery channels
	bus := notifications.NewBus(logger)
	hub := nwebsocket.NewHub(logger)
	bus.Subscribe(hub)
	bus.Subscribe(notifications.NewEmailChannel(sesv2.NewFromConfig(awsCfg), registry, cfg.AWS.SenderEmail))
	bus.Subscribe(notifications.NewSMSChannel(sns.NewFromConfig(awsCfg), registry))

	// Report lifecycle
	reportsRepo := deathreports.NewMongoRepository(db)
	gateway := payments.NewClient(cfg.Payments.GatewayURL, cfg.Payments.APIKey)
	lifecycle := deathreports.NewService(reportsRepo, registry, gateway, store, bus, logger, cfg.Lifecycle.ApprovalThreshold)
	reportsHandler := deathreports.NewHandler(lifecycle, store, logger)

	// Deadline sweep
	sweeper := scheduler.NewSweeper(lifecycle, registry, bus, logger)
	sweepManager := scheduler.NewManager(sweeper, logger, cfg.Scheduler.CronSpec)
	if err := sweepManager.Start(); err != nil {
		logger.Fatal("failed to start sweep manager", zap.Error(err))
	}
	defer sweepManager.Stop()

	// Router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	api := router.Group("/api/v1")
	api.Use(auth.Middleware(cfg.Security.JWTSecret))
	{
		reportsHandler.RegisterRoutes(api)

		api.GET("/ws", func(c *gin.Context) {
			principal, ok := auth.FromContext(c)
			if !ok {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
				return
			}
			if err := hub.HandleConnection(c.Writer, c.Request,
				principal.ID.Hex(), principal.SectionID.Hex(), principal.IsAdmin); err != nil {
				logger.Warn("websocket upgrade failed", zap.Error(err))
			}
		})
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	srv := &http.Server{
		Addr:    cfg.Server.GetServerAddr(),
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
