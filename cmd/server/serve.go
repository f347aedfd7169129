package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/example/paygw/internal/config"
	"github.com/example/paygw/internal/database"
	"github.com/example/paygw/internal/handlers"
	"github.com/example/paygw/internal/ifthenpay"
	"github.com/example/paygw/internal/routes"
	"github.com/example/paygw/internal/services"
	"github.com/example/paygw/pkg/log"
)

const shutdownTimeout = 20 * time.Second

var serveSkipMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveSkipMigrate, "skip-migrate", false, "do not run schema migrations on start")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	lg := log.Init(serviceName, loggerOptions(cfg)...)

	db, err := database.Connect(cfg.DatabaseURL, lg)
	if err != nil {
		return err
	}
	if !serveSkipMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, closeDeps, err := buildApp(ctx, cfg, db, lg)
	if err != nil {
		return err
	}
	defer closeDeps()

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("port", cfg.AppPort).Msg("starting server")
		errCh <- app.Listen(":" + cfg.AppPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

// buildApp wires stores, services and handlers into a fiber app. The returned
// func releases connections opened here.
func buildApp(ctx context.Context, cfg *config.Config, db *gorm.DB, lg zerolog.Logger) (*fiber.App, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PublicBaseURL == "" {
		return nil, closeAll, errors.New("PUBLIC_BASE_URL must be set")
	}

	host := services.NewHostStore(db)
	txs := services.NewTransactionStore(db)

	settings := services.NewSettings(host,
		services.BackofficeKeyValidator(ifthenpay.WithTimeout(cfg.AdminAPITimeout)),
		lg.With().Str("component", "settings").Logger())
	if err := settings.Seed(ctx, cfg.BackofficeKey); err != nil {
		return nil, closeAll, err
	}

	clients := services.NewClientProvider(host, ifthenpay.WithTimeout(cfg.APITimeout))

	var cache services.DatasetCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			lg.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, dataset cache disabled")
			_ = rdb.Close()
		} else {
			closers = append(closers, func() { _ = rdb.Close() })
			cache = services.NewRedisDatasetCache(rdb, cfg.DatasetCacheTTL, lg.With().Str("component", "dataset_cache").Logger())
		}
	}

	var notifier services.PaidNotifier
	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChat != "" {
		notifier = services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, lg.With().Str("component", "telegram").Logger())
	}

	reconciler := services.NewReconciler(txs, host, notifier, lg.With().Str("component", "reconcile").Logger())
	poller := services.NewPoller(txs, reconciler, clients, lg.With().Str("component", "poller").Logger(),
		services.WithPollWindow(cfg.PollWindow),
		services.WithPollInterval(cfg.PollInterval))
	checkout := services.NewCheckout(txs, host, host, clients, cfg.GatewaySurcharge, cfg.PublicBaseURL,
		lg.With().Str("component", "checkout").Logger())
	form := services.NewGatewayForm(host, host, clients, cache, cfg.WebhookURL(),
		lg.With().Str("component", "gateway_form").Logger())

	payment := handlers.NewPaymentHandler(checkout, txs, poller, reconciler, host, handlers.PaymentHandlerConfig{
		BaseURL:     cfg.PublicBaseURL,
		FallbackURL: cfg.FallbackURL,
		DefaultLang: cfg.DefaultLang,
	}, lg.With().Str("component", "http").Logger())
	admin := handlers.NewAdminHandler(settings, form, txs)

	app := fiber.New(fiber.Config{
		AppName:      "paygw",
		ErrorHandler: handlers.ErrorHandler(lg),
		// The return poll holds a request for up to the poll window.
		ReadTimeout:  cfg.PollWindow + 15*time.Second,
		WriteTimeout: cfg.PollWindow + 15*time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, routes.Deps{
		Payment:           payment,
		Admin:             admin,
		JWTSecret:         cfg.JWTSecret,
		AdminUser:         cfg.AdminUser,
		AdminPasswordHash: cfg.AdminPasswordHash,
	})

	if cfg.AdminPasswordHash == "" {
		lg.Warn().Msg("ADMIN_PASSWORD_HASH is empty, admin routes will reject every request")
	}
	return app, closeAll, nil
}
