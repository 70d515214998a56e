package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/defter-erp/defter/internal/app"
	"github.com/defter-erp/defter/internal/auth"
	"github.com/defter-erp/defter/internal/customers"
	"github.com/defter-erp/defter/internal/dashboard"
	"github.com/defter-erp/defter/internal/dispatch"
	"github.com/defter-erp/defter/internal/finance"
	"github.com/defter-erp/defter/internal/invoices"
	"github.com/defter-erp/defter/internal/platform/cache"
	"github.com/defter-erp/defter/internal/platform/db"
	"github.com/defter-erp/defter/internal/stock"
	"github.com/defter-erp/defter/internal/users"
	"github.com/defter-erp/defter/jobs"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := auth.NewSessionStore(redisClient, cfg.SessionTTL)
	authService := auth.NewService(auth.Credentials{
		Username:     cfg.AdminUser,
		PasswordHash: cfg.AdminPasswordHash,
	})

	customersService := customers.NewService(customers.NewRepository(pool))
	stockService := stock.NewService(stock.NewRepository(pool))
	financeService := finance.NewService(finance.NewRepository(pool))
	invoicesService := invoices.NewService(invoices.NewRepository(pool))
	dispatchService := dispatch.NewService(dispatch.NewRepository(pool))
	usersService := users.NewService(users.NewRepository(pool))

	dashboardCache := cache.NewJSONCache(redisClient, cfg.DashboardCacheTTL)
	dashboardService := dashboard.NewService(customersService, financeService, invoicesService, dispatchService, dashboardCache)

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	enqueueRefresh := func(r *http.Request) error {
		_, err := jobClient.EnqueueRatesRefresh(r.Context())
		return err
	}
	invalidateSummary := dashboardService.Invalidate

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Sessions:         sessions,
		AuthHandler:      auth.NewHandler(logger, authService, sessions, usersService, cfg.IsProduction()),
		CustomersHandler: customers.NewHandler(logger, customersService),
		StockHandler:     stock.NewHandler(logger, stockService),
		FinanceHandler:   finance.NewHandler(logger, financeService, enqueueRefresh, invalidateSummary),
		InvoicesHandler:  invoices.NewHandler(logger, invoicesService, invalidateSummary),
		DispatchHandler:  dispatch.NewHandler(logger, dispatchService, invalidateSummary),
		UsersHandler:     users.NewHandler(logger, usersService),
		DashboardHandler: dashboard.NewHandler(logger, dashboardService),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
