package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	log "github.com/sirupsen/logrus"

	"alcyxob/fittrack/internal/api"
	"alcyxob/fittrack/internal/cache"
	"alcyxob/fittrack/internal/config"
	"alcyxob/fittrack/internal/draft"
	"alcyxob/fittrack/internal/logging"
	"alcyxob/fittrack/internal/metrics"
	"alcyxob/fittrack/internal/remote"
	"alcyxob/fittrack/internal/repository/mongo"
	"alcyxob/fittrack/internal/service"
	"alcyxob/fittrack/internal/storage"
	"alcyxob/fittrack/internal/volume"
)

// @title fittrack API
// @version 1.0
// @description Workout logging: exercise catalogue, workout drafts, history and volume statistics.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	configDir := flag.String("config", ".", "directory holding config.yaml")
	flag.Parse()

	// --- Configuration ---
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("could not load config: %s", err)
	}

	logCloser := logging.Setup(cfg.Log)
	defer logCloser.Close()
	log.Infoln("starting fittrack server...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI, cfg.Database.ConnectTimeout)
	if err != nil {
		log.Fatalf("could not connect to MongoDB: %s", err)
	}
	defer func() {
		log.Infoln("disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Errorf("failed to disconnect MongoDB: %s", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)

	// index creation runs in the background
	go func() {
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		mongo.EnsureIndexes(ctx, appDB)
		log.Infoln("index creation process completed")
	}()

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	}

	// --- File storage, optional ---
	var fileStorage storage.FileStorage
	if cfg.S3.BucketName != "" {
		fileStorage, err = storage.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("failed to initialize S3 storage: %s", err)
		}
	} else {
		log.Warnln("s3.bucket_name is empty, avatar uploads are disabled")
	}

	// --- Metrics ---
	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("fittrack", "server", promRegistry)

	// --- Remote data access and cache ---
	client := remote.NewClient(
		mongo.NewMongoProfileRepository(appDB),
		mongo.NewMongoExerciseRepository(appDB),
		mongo.NewMongoEquipmentRepository(appDB),
		mongo.NewMongoWorkoutRepository(appDB),
		cfg.Remote.Timeout,
		metricsManager,
	)
	cacheStore := cache.New(
		cache.WithDedupeInterval(cfg.Cache.DedupeInterval),
		cache.WithMetrics(metricsManager),
	)
	drafts := draft.NewRedisStore(rdb, cfg.Draft.TTL)

	// --- Services ---
	authService := service.NewAuthService(
		mongo.NewMongoUserRepository(appDB),
		mongo.NewMongoProfileRepository(appDB),
		service.NewSessionStore(rdb, cfg.Auth.RefreshTTL),
		service.LogMailer{},
		service.AuthOptions{
			JWTSecret:     cfg.JWT.Secret,
			Issuer:        cfg.JWT.Issuer,
			JWTExpiration: cfg.JWT.Expiration,
			LinkTTL:       cfg.Auth.LinkTTL,
			SiteURL:       cfg.Auth.SiteURL,
		},
	)
	services := api.Services{
		Auth:     authService,
		Workouts: service.NewWorkoutService(client, cacheStore, drafts, volume.Formatter{WeekStart: time.Monday}),
		Drafts:   service.NewDraftService(drafts, client, cacheStore),
		Profiles: service.NewProfileService(client, cacheStore, fileStorage),
		Catalog:  service.NewCatalogService(client, cacheStore),
	}

	// --- HTTP ---
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()

	opts := api.RouterOptions{
		Cookies: api.CookieOptions{
			Domain:     cfg.Auth.CookieDomain,
			Secure:     cfg.Auth.CookieSecure,
			RefreshTTL: cfg.Auth.RefreshTTL,
		},
		Metrics: metricsManager,
	}
	if cfg.Server.MetricsEnabled {
		opts.Gatherer = promRegistry
	}
	if cfg.RateLimit.Enabled {
		opts.RateLimiter = redis_rate.NewLimiter(rdb)
		opts.PerMinute = cfg.RateLimit.PerMinute
	}
	api.SetupRoutes(router, services, opts)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		log.Infof("server starting on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe: %s", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSig := <-quit
	log.Warnf("signal [%s] received, shutting down...", receivedSig)

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Errorf("server forced to shutdown: %s", err)
	}
	log.Infoln("server exiting")
}
