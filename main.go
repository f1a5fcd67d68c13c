package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbolis/leadform/app"
	"github.com/mbolis/leadform/billing"
	"github.com/mbolis/leadform/config"
	"github.com/mbolis/leadform/database"
	"github.com/mbolis/leadform/httpx"
	"github.com/mbolis/leadform/integrations"
	"github.com/mbolis/leadform/log"
	"github.com/mbolis/leadform/routes"
)

const shutdownTimeout = 20 * time.Second

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	version, err := database.SchemaVersion(db)
	if err != nil {
		log.Fatal("main.db.version:", err)
	}
	log.Infof("Database %s at schema version %d", cfg.DBUrl, version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := integrations.NewDispatcher(cfg.WebhookWorkers,
		integrations.WithQueueSize(cfg.WebhookQueue),
		integrations.WithClient(&http.Client{Timeout: cfg.WebhookTimeout}),
	)
	limiter := httpx.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, 10*time.Minute)
	go limiter.Run(ctx)

	app := app.App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(db, cfg.TokenSecret, cfg.TokenTTL),
		Config:       cfg,
		APITokens:    app.NewAPITokens(cfg.TokenSecret),
		Dispatcher:   dispatcher,
		Mailer:       integrations.NewMailer(cfg.Mail.ResendAPIKey, cfg.Mail.From, cfg.BaseURL),
		Paystack:     billing.NewPaystack(cfg.Paystack.SecretKey, cfg.Paystack.BaseURL),
	}

	handler := routes.Wire(app, limiter)

	err = runServer(ctx, cfg, handler)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Errorf("main.dispatcher.close: %s", err)
	}
	stats := dispatcher.Stats()
	log.Infof("webhooks: %d delivered, %d failed, %d dropped", stats.Delivered, stats.Failed, stats.Dropped)
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("Listening on " + cfg.Url())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
