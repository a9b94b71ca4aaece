package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/auth"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/cache"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/config"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/events"
	cartgrpc "github.com/klawrenceboxx/postergenius2025-sub000/internal/grpc"
	h "github.com/klawrenceboxx/postergenius2025-sub000/internal/http"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/orders"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/ratelimit"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/repository"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/service"
	"github.com/klawrenceboxx/postergenius2025-sub000/pkg/circuitbreaker"
	"github.com/klawrenceboxx/postergenius2025-sub000/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	accessTokenTTL      = time.Hour
	healthCheckInterval = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("cart service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		return err
	}
	defer mongoDB.Client().Disconnect(context.Background())

	repo := repository.NewMongoRepository(mongoDB,
		repository.WithTransactions(cfg.Mongo.Transactions),
		repository.WithGuestTTL(cfg.Cart.GuestTTL),
	)
	if err := repo.CreateIndexes(ctx); err != nil {
		return err
	}
	slog.Info("connected to MongoDB", "db", cfg.Mongo.DBName, "transactions", cfg.Mongo.Transactions)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	slog.Info("redis ping succeeded", "addr", cfg.Redis.Addr)

	cartCache := cache.NewBreakerCache(cache.NewRedisCache(redisClient), circuitbreaker.Config{Name: "cart-cache"})
	limiter := ratelimit.NewRedisLimiter(redisClient)

	// Postgres
	ordersRepo, err := orders.NewPostgresRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer ordersRepo.Close()
	if err := ordersRepo.RunMigrations(); err != nil {
		return err
	}
	slog.Info("orders schema migrated")

	// Kafka
	var publisher service.EventPublisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		kp := events.NewKafkaPublisher(cfg.Kafka.BrokerList()...)
		defer kp.Close()
		publisher = kp
	}

	carts := service.NewCartService(repo, cartCache, cfg.Cart.MaxQuantity)
	merges := service.NewMergeService(repo, cartCache, limiter, publisher, cfg.Cart.MergeLockWindow)
	ordersService := service.NewOrdersService(ordersRepo)

	if cfg.Kafka.Enabled {
		consumer := events.NewCheckoutConsumer(ordersRepo, carts, cfg.Kafka.BrokerList()...)
		defer consumer.Close()
		go consumer.Run(ctx)
		slog.Info("checkout consumer started", "topic", events.CheckoutOutboxTopic)
	}

	// HTTP
	timeout := cfg.Server.WriteTimeout
	handlers := h.Handlers{
		Cart: h.NewCartHandler(carts, timeout),
		Session: h.NewSessionHandler(
			auth.NewGuestTokens(cfg.Guest.TokenSecret, cfg.Guest.CookieTTL),
			merges,
			ordersService,
			h.CookieConfig{Name: cfg.Guest.CookieName, Secure: cfg.Guest.CookieSecure},
			timeout,
		),
		Orders: h.NewOrdersHandler(ordersService, timeout),
	}
	router := h.NewRouter(h.RouterConfig{
		RequestTimeout: timeout,
		AllowedOrigins: cfg.CORS.Origins(),
		RateLimit:      cfg.Cart.RateLimit,
	}, handlers, auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, accessTokenTTL), limiter)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// gRPC health
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	healthServer := cartgrpc.NewHealthServer()
	go healthServer.Watch(ctx, healthCheckInterval, map[string]cartgrpc.Check{
		"mongo":    func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, readpref.Primary()) },
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"postgres": ordersRepo.Ping,
	})

	errCh := make(chan error, 2)
	go func() {
		slog.Info("http server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		slog.Info("grpc health server listening", "port", cfg.Server.GRPCPort)
		if err := healthServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutting down cart service", "signal", sig.String())
	case err := <-errCh:
		slog.Error("server error, shutting down", "error", err)
	}

	cancel()
	healthServer.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("cart service stopped")
	return nil
}
