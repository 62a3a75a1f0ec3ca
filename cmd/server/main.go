package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classifieds/internal/admin"
	"classifieds/internal/assistant"
	"classifieds/internal/chat"
	"classifieds/internal/config"
	"classifieds/internal/dashboard"
	"classifieds/internal/db"
	"classifieds/internal/listing"
	"classifieds/internal/logging"
	"classifieds/internal/media"
	myMiddleware "classifieds/internal/middleware"
	"classifieds/internal/ratelimit"
	"classifieds/internal/report"
	"classifieds/internal/server"
	"classifieds/internal/user"

	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Config & Flags
	configPath := flag.String("config", config.ConfigPath, "path to the YAML config file")
	makeAdmin := flag.String("make-admin", "", "grant the admin role to this email and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := logging.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database (Platform Layer)
	database, err := db.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer database.Close()
	logger.Info("connected to postgres")

	if err := database.AutoMigrate(ctx); err != nil {
		return err
	}
	logger.Info("database schema initialized")

	// 3. Connect to Redis (Platform Layer)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to redis", "addr", cfg.RedisAddr)

	// 4. Users, sessions and roles
	userRepo := user.NewRepository(database.X)
	userService := user.NewService(userRepo, user.NewRedisRevoker(redisClient), cfg.JWTSecret, cfg.TokenLifetime())

	if *makeAdmin != "" {
		if err := userService.GrantRole(ctx, *makeAdmin, user.RoleAdmin); err != nil {
			return fmt.Errorf("grant admin to %s: %w", *makeAdmin, err)
		}
		logger.Info("admin role granted", "email", *makeAdmin)
		return nil
	}

	// 5. Catalog, reports and file hosting
	listingRepo := listing.NewRepository(database.X)
	listingService := listing.NewService(listingRepo)
	reportService := report.NewService(report.NewRepository(database.X))

	var mediaHandler *media.Handler
	if cfg.Minio.Endpoint != "" {
		store, err := media.NewMinioStore(ctx, cfg.Minio.Endpoint, cfg.Minio.AccessKey,
			cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL)
		if err != nil {
			return err
		}
		mediaHandler = media.NewHandler(media.NewService(store))
		logger.Info("image storage enabled", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)
	} else {
		logger.Warn("MINIO_ENDPOINT not set; image uploads disabled")
	}

	// 6. Chat: the hub fans Redis events out to this instance's sockets
	hub := chat.NewHub(redisClient, logger)
	if err := hub.Start(ctx); err != nil {
		return err
	}
	chatService := chat.NewService(chat.NewRepository(database.X), hub)

	// 7. Rate limits for abuse-prone endpoints
	trusted, err := ratelimit.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parse trusted proxies: %w", err)
	}
	authLimiter, err := ratelimit.NewFixedWindowLimiter(redisClient, "classifieds:ratelimit:auth",
		cfg.RateLimit.AuthPerMinute, time.Minute)
	if err != nil {
		return err
	}
	authLimiter.TrustProxies(trusted)
	assistantLimiter, err := ratelimit.NewFixedWindowLimiter(redisClient, "classifieds:ratelimit:assistant",
		cfg.RateLimit.AssistantPerMinute, time.Minute)
	if err != nil {
		return err
	}
	assistantLimiter.TrustProxies(trusted)

	// 8. Define Routes
	router := server.New(server.Deps{
		Auth:      myMiddleware.NewAuthMiddleware(userService),
		Roles:     userService,
		Users:     user.NewHandler(userService),
		Listings:  listing.NewHandler(listingService),
		Media:     mediaHandler,
		Chat:      chat.NewHandler(chatService, hub),
		Dashboard: dashboard.NewHandler(dashboard.NewService(userService, listingService, chatService)),
		Reports:   report.NewHandler(reportService),
		Admin:     admin.NewHandler(admin.NewService(userService, listingRepo, reportService)),
		Assistant: assistant.NewHandler(assistant.NewService(
			assistant.NewOpenAICompatClient(cfg.Assistant.BaseURL, cfg.Assistant.APIKey, cfg.Assistant.Model))),
		AuthLimiter:      authLimiter,
		AssistantLimiter: assistantLimiter,
		Ready: func(ctx context.Context) error {
			if err := database.Conn.PingContext(ctx); err != nil {
				return err
			}
			return redisClient.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
