package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/rpr91/Malandros/common/errors"
	"github.com/rpr91/Malandros/common/logger"
	"github.com/rpr91/Malandros/config"
	"github.com/rpr91/Malandros/controllers"
	"github.com/rpr91/Malandros/database"
	"github.com/rpr91/Malandros/middleware"
	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
	"github.com/rpr91/Malandros/pkg/csrf"
	"github.com/rpr91/Malandros/repository"
	"github.com/rpr91/Malandros/routes"
	"github.com/rpr91/Malandros/services"
)

const (
	cartTTL           = 7 * 24 * time.Hour
	imageUploadExpiry = 15 * time.Minute
	janitorInterval   = time.Hour
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer bootCancel()

	awsCfg, err := aws_pkg.LoadAWSConfig(bootCtx)
	if err != nil {
		log.Fatalf("failed to load AWS config: %v", err)
	}

	var logSink io.Writer
	if cfg.CloudWatchEnabled && cfg.CloudWatchLogGroup != "" {
		w, err := aws_pkg.NewCloudWatchLogsWriter(bootCtx, awsCfg, cfg.CloudWatchLogGroup, cfg.ServerName)
		if err != nil {
			log.Printf("CloudWatch Logs disabled: %v", err)
		} else {
			logSink = w
		}
	}

	zapLogger, err := logger.Initialize(cfg.Env, logSink)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting storefront", zap.String("env", cfg.Env), zap.String("port", cfg.Port))

	// Datastores
	db, err := database.ConnectPostgres(cfg.PostgresDSN(), zapLogger)
	if err != nil {
		zapLogger.Fatal("Could not connect to PostgreSQL", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zapLogger.Fatal("Migration failed", zap.Error(err))
	}

	mongoClient, mongoDB, err := database.ConnectMongo(cfg.MongoURL, cfg.MongoDB)
	if err != nil {
		zapLogger.Fatal("Could not connect to MongoDB", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}

	// AWS
	metrics := aws_pkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	snsClient := aws_pkg.NewSNSClient(awsCfg)

	var uploader aws_pkg.ImageUploader
	if cfg.MenuImagesBucket != "" {
		uploader = aws_pkg.NewS3ImageUploader(awsCfg, cfg.MenuImagesBucket, cfg.MenuImagesPublicURL, imageUploadExpiry)
	}

	// Repositories
	userRepo := repository.NewGormUserRepository(db)
	tokenRepo := repository.NewGormRefreshTokenRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)
	menuRepo := repository.NewMongoMenuRepository(mongoDB)
	cartRepo := repository.NewRedisCartRepository(redisClient, cartTTL)

	var eventStore repository.EventStore
	if cfg.WebhookEventsTable != "" {
		eventStore = repository.NewDynamoEventStore(aws_pkg.NewDynamoDBClient(awsCfg), cfg.WebhookEventsTable, cfg.WebhookEventTTL)
	} else {
		eventStore = repository.NewRedisEventStore(redisClient, cfg.WebhookEventTTL)
	}

	// Services
	tokenSvc, err := services.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		zapLogger.Fatal("Invalid token configuration", zap.Error(err))
	}
	authSvc := services.NewAuthService(userRepo, tokenRepo, tokenSvc, metrics, zapLogger)
	menuSvc := services.NewMenuService(menuRepo, uploader, zapLogger)
	cartSvc := services.NewCartService(cartRepo, menuRepo, zapLogger)
	orderSvc := services.NewOrderService(orderRepo, menuRepo, snsClient, cfg.OrderEventsTopicARN, metrics, cfg.DefaultCurrency, zapLogger)
	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	paymentSvc := services.NewPaymentService(stripeSvc, orderRepo, cartRepo, snsClient, cfg.OrderEventsTopicARN, metrics, cfg.DefaultCurrency, zapLogger)

	csrfGen, err := csrf.NewGenerator(cfg.CSRFSecret)
	if err != nil {
		zapLogger.Fatal("Invalid CSRF configuration", zap.Error(err))
	}

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	go services.StartTokenJanitor(workerCtx, tokenRepo, janitorInterval, zapLogger)

	if cfg.FulfillmentQueueURL != "" {
		consumer := services.NewFulfillmentConsumer(
			aws_pkg.NewSQSConsumer(awsCfg, cfg.FulfillmentQueueURL, zapLogger),
			orderRepo,
			zapLogger,
		)
		go consumer.Start(workerCtx)
	}

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(zapLogger))
	r.Use(middleware.MetricsMiddleware(metrics, cfg.ServerName))
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", csrf.HeaderName, middleware.AdminKeyHeader, middleware.UserIDHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterRoutes(r, routes.Dependencies{
		Auth:     controllers.NewAuthController(authSvc, cfg.IsProduction(), zapLogger),
		Payments: controllers.NewPaymentController(paymentSvc, stripeSvc, eventStore, metrics, zapLogger),
		Menu:     controllers.NewMenuController(menuSvc),
		Cart:     controllers.NewCartController(cartSvc),
		Orders:   controllers.NewOrderController(orderSvc),
		CSRF: middleware.CSRFProtection(csrfGen, middleware.CSRFOptions{
			SameSite: middleware.ParseSameSite(cfg.CSRFSameSite),
			Secure:   cfg.IsProduction(),
			Metrics:  metrics,
		}, zapLogger),
		AuthLimiter: middleware.AuthRateLimit(workerCtx.Done()),
		Tokens:      tokenSvc,
		AdminKey:    cfg.AdminAPIKey,
		ServiceName: cfg.ServerName,
		Logger:      zapLogger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("Storefront listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLogger.Info("Shutting down gracefully...")
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server shutdown error", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		zapLogger.Warn("Redis close error", zap.Error(err))
	}
	if err := database.CloseMongo(mongoClient); err != nil {
		zapLogger.Warn("MongoDB close error", zap.Error(err))
	}
	if err := database.ClosePostgres(db); err != nil {
		zapLogger.Warn("PostgreSQL close error", zap.Error(err))
	}
	zapLogger.Info("Server shutdown complete")
}
