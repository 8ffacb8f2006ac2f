package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/bazaar/internal/alerts"
	"github.com/sudo-init-do/bazaar/internal/config"
	"github.com/sudo-init-do/bazaar/internal/db"
	"github.com/sudo-init-do/bazaar/internal/identity"
	"github.com/sudo-init-do/bazaar/internal/logger"
	"github.com/sudo-init-do/bazaar/internal/marketplace"
	"github.com/sudo-init-do/bazaar/internal/messaging"
	appmw "github.com/sudo-init-do/bazaar/internal/middleware"
	"github.com/sudo-init-do/bazaar/internal/orders"
	"github.com/sudo-init-do/bazaar/internal/payments"
	"github.com/sudo-init-do/bazaar/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.SetDebug(cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		return err
	}
	gateway := newGateway(cfg)

	redis := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password}
	client := asynq.NewClient(redis)
	defer client.Close()

	directory := identity.NewPgDirectory(pool)
	hub := messaging.NewHub(0)
	notifications := alerts.NewPgStore(pool)
	notifier := alerts.NewNotifier(alerts.NewQueue(client, 0), notifications, directory, hub, cfg.AppURL)

	listings := marketplace.NewPgStore(pool)
	orderSvc := orders.New(orders.NewPgRepository(pool), listings, gateway, notifier, cfg.Payments.Currency)
	messageSvc := messaging.NewService(messaging.NewPgStore(pool), listings, hub, notifier)

	e, err := server.New(cfg.Server, appmw.NewAuthenticator(verifier, directory), pool,
		marketplace.NewHandler(listings).Routes(),
		orders.NewHandler(orderSvc).Routes(),
		messaging.NewHandler(messageSvc).Routes(),
		alerts.NewHandler(notifications).Routes(),
	)
	if err != nil {
		return err
	}
	worker := alerts.NewProcessor(redis, alerts.NewMailer(cfg.Mail))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("API server listening on :%s", cfg.Server.Port)
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	return g.Wait()
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (identity.Verifier, error) {
	switch cfg.Provider {
	case "firebase":
		return identity.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
	case "jwt":
		return identity.NewJWTVerifier(cfg.JWTSecret), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Provider)
	}
}

func newGateway(cfg *config.Config) payments.Gateway {
	if cfg.Payments.Provider == "stripe" {
		return payments.NewStripe(cfg.Payments)
	}
	logger.Warn("using the sandbox payment gateway; no real charges are made")
	return payments.NewSandbox(cfg.Payments.WebhookSecret, cfg.AppURL)
}
