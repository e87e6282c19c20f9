package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "invoice-auditor/internal/adapters/web"
	"invoice-auditor/internal/ai"
	"invoice-auditor/internal/app"
	"invoice-auditor/internal/config"
	"invoice-auditor/internal/core"
	"invoice-auditor/internal/db"
	"invoice-auditor/internal/metrics"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	auditMetrics := metrics.NewAuditMetrics()
	store := core.NewInvoiceStore(pool)
	auditor := core.NewAuditor(cfg.Audit, store,
		core.WithLogger(logger),
		core.WithObserver(auditMetrics),
	)

	var extractor app.InvoiceExtractor
	if cfg.OpenAIAPIKey != "" {
		extractor = ai.NewExtractor(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		log.Println("Warning: OPENAI_API_KEY is not set, document text extraction is disabled")
	}

	svc := app.NewAuditService(store, auditor, extractor, logger)
	handler := webAdapter.NewHandler(svc, cfg.AllowedOrigins, cfg.JWTSecret, auditMetrics.Handler(), logger)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("server starting on :%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Println("server stopped")
}
