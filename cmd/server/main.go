package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/grpc"

	grpcAdapter "github.com/Abdurahmanit/GroupProject/annonce-service/internal/adapter/grpc"
	httpAdapter "github.com/Abdurahmanit/GroupProject/annonce-service/internal/adapter/http"
	natsAdapter "github.com/Abdurahmanit/GroupProject/annonce-service/internal/adapter/messaging/nats"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/adapter/repository/cache"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/adapter/repository/memory"
	mongoRepo "github.com/Abdurahmanit/GroupProject/annonce-service/internal/adapter/repository/mongodb"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/adapter/storage/s3"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/config"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/usecase"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/mailer"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/auth"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/tracer"
)

// stores groups the repositories behind the selected STORE_DRIVER.
type stores struct {
	listings domain.ListingRepository
	images   domain.ImageRepository
	links    domain.LinkRepository
	taxonomy domain.Taxonomy
	health   func(ctx context.Context) error
	close    func(ctx context.Context)
}

func fatal(log *logger.Logger, msg string, kv ...interface{}) {
	log.Error(msg, kv...)
	_ = log.Sync()
	os.Exit(1)
}

func openMongo(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	log.Info("Successfully connected and pinged MongoDB", "database", cfg.MongoDatabase)

	db := client.Database(cfg.MongoDatabase)
	if err := mongoRepo.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	listings := mongoRepo.NewListingRepository(db, cfg.StoreTimeout, log)
	return &stores{
		listings: listings,
		images:   mongoRepo.NewImageRepository(db, cfg.StoreTimeout, log),
		links:    mongoRepo.NewLinkRepository(db, cfg.StoreTimeout, log),
		taxonomy: mongoRepo.NewTaxonomyRepository(db, cfg.StoreTimeout),
		health:   listings.Ping,
		close: func(ctx context.Context) {
			log.Info("Disconnecting from MongoDB...")
			if err := client.Disconnect(ctx); err != nil {
				log.Error("Error disconnecting from MongoDB", "error", err)
			}
		},
	}, nil
}

func openMemory(log *logger.Logger) *stores {
	log.Warn("Using in-memory store, data is lost on restart")
	return &stores{
		listings: memory.NewListingRepository(),
		images:   memory.NewImageRepository(),
		links:    memory.NewLinkRepository(),
		taxonomy: memory.NewTaxonomyRepository(),
		health:   func(context.Context) error { return nil },
		close:    func(context.Context) {},
	}
}

func main() {
	appLogger := logger.NewLogger()
	defer func() { _ = appLogger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		fatal(appLogger, "Failed to load configuration", "error", err)
	}
	appLogger = appLogger.With("service", cfg.ServiceName)
	appLogger.Info("Configuration loaded",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"store_driver", cfg.StoreDriver,
		"redis_enabled", cfg.RedisAddress != "",
		"nats_enabled", cfg.NATSURL != "",
	)

	ctx := context.Background()

	tp, err := tracer.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint, appLogger)
	if err != nil {
		fatal(appLogger, "Failed to initialize tracer", "error", err)
	}

	appMetrics := metrics.New(cfg.ServiceName)

	var st *stores
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		st = openMemory(appLogger)
	default:
		st, err = openMongo(ctx, cfg, appLogger)
		if err != nil {
			fatal(appLogger, "Failed to open MongoDB store", "error", err)
		}
	}

	media, err := s3.NewS3Storage(ctx, s3.Options{
		Endpoint:      cfg.MinIOEndpoint,
		AccessKey:     cfg.MinIOAccessKey,
		SecretKey:     cfg.MinIOSecretKey,
		Bucket:        cfg.MinIOBucket,
		UseSSL:        cfg.MinIOUseSSL,
		PublicBaseURL: cfg.MediaPublicBaseURL,
	}, appLogger)
	if err != nil {
		fatal(appLogger, "Failed to initialize media storage", "error", err)
	}

	opts := []usecase.Option{
		usecase.WithTaxonomy(st.taxonomy),
		usecase.WithMetrics(appMetrics),
		usecase.WithPageSize(cfg.ListingPageSize),
	}

	var listingCache *cache.ListingCache
	if cfg.RedisAddress != "" {
		listingCache, err = cache.NewListingCache(cfg.RedisAddress, cfg.CacheTTL)
		if err != nil {
			fatal(appLogger, "Failed to connect to Redis", "address", cfg.RedisAddress, "error", err)
		}
		opts = append(opts, usecase.WithCache(listingCache))
		appLogger.Info("Redis listing cache enabled", "ttl", cfg.CacheTTL)
	}

	var publisher *natsAdapter.Publisher
	if cfg.NATSURL != "" {
		publisher, err = natsAdapter.NewPublisher(cfg.NATSURL, cfg.ServiceName, appLogger)
		if err != nil {
			fatal(appLogger, "Failed to initialize NATS publisher", "error", err)
		}
		opts = append(opts, usecase.WithPublisher(publisher))
	}

	imageUC := usecase.NewImageUsecase(st.listings, st.images, st.links, media, appLogger, opts...)

	listingOpts := opts
	if cfg.NotifyEmail != "" {
		notifier, err := mailer.NewSMTPMailer(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			NotifyTo: cfg.NotifyEmail,
		}, appLogger)
		if err != nil {
			fatal(appLogger, "Failed to initialize SMTP mailer", "error", err)
		}
		listingOpts = append(listingOpts, usecase.WithNotifier(notifier))
	}
	listingUC := usecase.NewListingUsecase(st.listings, imageUC, appLogger, listingOpts...)

	verifier := auth.NewVerifier(cfg.JWTSecret)

	router := httpAdapter.NewRouter(httpAdapter.Config{
		Listings:   listingUC,
		Images:     imageUC,
		Taxonomy:   st.taxonomy,
		Verifier:   verifier,
		CookieName: cfg.JWTCookieName,
		Health:     st.health,
		Metrics:    appMetrics,
		Logger:     appLogger,
	})
	httpSrv := httpAdapter.NewServer(cfg.HTTPPort, router)
	go func() {
		appLogger.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(appLogger, "HTTP server error", "error", err)
		}
	}()

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		fatal(appLogger, "Failed to listen for gRPC", "port", cfg.GRPCPort, "error", err)
	}
	grpcSrv, _, stopGRPC := grpcAdapter.NewGRPCServer(cfg.ServiceName, appLogger, verifier)
	go func() {
		appLogger.Info("Starting gRPC server", "port", cfg.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			fatal(appLogger, "gRPC server error", "error", err)
		}
	}()

	metricsSrv := metrics.NewServer(cfg.MetricsPort, appMetrics, appLogger)
	if metricsSrv != nil {
		go func() {
			appLogger.Info("Starting Prometheus metrics server", "port", cfg.MetricsPort)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.Error("Prometheus metrics server failed", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	appLogger.Info("Received shutdown signal", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	}
	stopGRPC()
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics server shutdown failed", "error", err)
		}
	}

	if publisher != nil {
		publisher.Close()
	}
	if listingCache != nil {
		if err := listingCache.Close(); err != nil {
			appLogger.Error("Failed to close Redis client", "error", err)
		}
	}
	st.close(shutdownCtx)

	if err := tp.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Failed to shutdown tracer provider", "error", err)
	}
	appLogger.Info("Application stopped")
}
