// Package main запускает HTTP-сервер администрирования полисов страхования жизни.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/life-admin-system/internal/config"
	"github.com/mmeshcher/life-admin-system/internal/finance"
	"github.com/mmeshcher/life-admin-system/internal/handler"
	"github.com/mmeshcher/life-admin-system/internal/metrics"
	"github.com/mmeshcher/life-admin-system/internal/middleware"
	"github.com/mmeshcher/life-admin-system/internal/notify"
	"github.com/mmeshcher/life-admin-system/internal/repository"
	"github.com/mmeshcher/life-admin-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := openRepository(cfg, logger)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	opts := []service.Option{
		service.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		service.WithCompany(cfg.CompanyName),
	}
	if cfg.FinanceSystemAddress != "" {
		opts = append(opts, service.WithFinance(finance.NewClient(cfg.FinanceSystemAddress), cfg.FinanceEmail))
	} else if cfg.FinanceEmail != "" {
		opts = append(opts, service.WithFinance(nil, cfg.FinanceEmail))
	}
	if cfg.SMTP.Host != "" {
		opts = append(opts, service.WithMailer(notify.NewSMTP(notify.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})))
	} else {
		sugar.Warn("SMTP_HOST is not set, emails will not be sent")
	}

	svc := service.NewService(repo, logger, opts...)
	defer svc.Close()

	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is not set, tokens will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware,
		handler.WithCORS(cfg.CORSAllowedOrigins),
		handler.WithMetricsHandler(promhttp.Handler()),
	)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting life admin server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// openRepository подключается к PostgreSQL, а без DATABASE_URI работает в памяти.
func openRepository(cfg *config.Config, logger *zap.Logger) (service.Repository, error) {
	if cfg.DatabaseURI == "" {
		logger.Warn("DATABASE_URI is not set, using in-memory storage")
		return repository.NewMemoryRepository(), nil
	}
	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
