package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estate-commission/internal/adapters/http/middleware"
	"estate-commission/internal/adapters/http/routes"
	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/config"
	"estate-commission/internal/core/services"
	"estate-commission/internal/pkg/mailer"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := config.NewLogger(cfg)
	slog.SetDefault(log)

	// Connect to database
	db, err := config.ConnectDatabase(cfg, log)
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer config.CloseDatabase()

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Error("failed to auto migrate", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("database migration completed")

	if err := config.NewSeeder(db, cfg, log).Run(); err != nil {
		log.Warn("seeding failed", slog.Any("error", err))
	}

	mail := mailer.NewSMTPMailer(mailer.Config{
		Enabled:  cfg.Email.Enabled,
		From:     cfg.Email.From,
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		UseTLS:   cfg.Email.UseTLS,
		Timeout:  time.Duration(cfg.Email.TimeoutSeconds) * time.Second,
	})

	cache, closeCache := newSummaryCache(cfg, log)
	defer closeCache()

	svc := services.NewServices(db, cfg, mail, cache, log)

	// Background jobs: notification purge and voucher email retry
	if cfg.Cron.Enabled {
		cronService := services.NewCronService(svc.Notifications, svc.Vouchers, cfg.Cron, log)
		if err := cronService.Start(); err != nil {
			log.Error("failed to start cron", slog.Any("error", err))
			os.Exit(1)
		}
		defer cronService.Stop()
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Estate Commission API",
		ErrorHandler: middleware.ErrorHandler(log),
	})

	middleware.Setup(app, cfg)
	routes.Setup(app, svc, cfg)

	// Graceful shutdown
	go gracefulShutdown(app, log)

	log.Info("server starting", slog.String("port", cfg.Port), slog.String("mode", cfg.AppMode))
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error("failed to start server", slog.Any("error", err))
	}
}

// newSummaryCache connects to Redis when configured. An unreachable server
// disables caching rather than stopping startup.
func newSummaryCache(cfg *config.Config, log *slog.Logger) (services.SummaryCache, func()) {
	if cfg.Redis.Addr == "" {
		return nil, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, summary cache disabled", slog.String("addr", cfg.Redis.Addr), slog.Any("error", err))
		client.Close()
		return nil, func() {}
	}

	log.Info("redis connected", slog.String("addr", cfg.Redis.Addr))
	return services.NewRedisSummaryCache(client, cfg.Redis.SummaryTTL, log), func() { client.Close() }
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App, log *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("error during shutdown", slog.Any("error", err))
	}
	log.Info("server stopped gracefully")
}
