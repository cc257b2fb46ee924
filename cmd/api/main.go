package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tourbook-backend/api/routes"
	"github.com/angelmondragon/tourbook-backend/internal/checkout"
	"github.com/angelmondragon/tourbook-backend/internal/cron"
	"github.com/angelmondragon/tourbook-backend/internal/receipts"
	"github.com/angelmondragon/tourbook-backend/internal/storefront"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/db"
	"github.com/angelmondragon/tourbook-backend/pkg/instance"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/migrate"
	"github.com/angelmondragon/tourbook-backend/pkg/redis"
	"github.com/angelmondragon/tourbook-backend/pkg/tourapi"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	location, err := cfg.Storefront.Location()
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storefrontMetrics := metrics.NewStorefrontMetrics(promRegistry)
	cronMetrics := metrics.NewCronJobMetrics(promRegistry)

	tourClient, err := tourapi.NewClient(cfg.TourAPI.BaseURL,
		tourapi.WithAPIKey(cfg.TourAPI.APIKey),
		tourapi.WithTimeout(cfg.TourAPI.Timeout),
	)
	if err != nil {
		return err
	}
	fetcher, err := tours.NewAPIFetcher(tourClient, logg, storefrontMetrics)
	if err != nil {
		return err
	}

	workspaces, err := storefront.NewRegistry(storefront.RegistryParams{
		Snapshots:   redisClient,
		Logger:      logg,
		Metrics:     storefrontMetrics,
		Location:    location,
		SnapshotTTL: cfg.Storefront.CartSnapshotTTL,
	})
	if err != nil {
		return err
	}
	storefrontService, err := storefront.NewService(storefront.ServiceParams{
		Registry: workspaces,
		Fetcher:  fetcher,
		Logger:   logg,
		Metrics:  storefrontMetrics,
		Tokens:   cfg.Session,
	})
	if err != nil {
		return err
	}

	receiptRepo := receipts.NewRepository(dbClient.DB())
	checkoutService, err := checkout.NewService(storefrontService, tourClient, receiptRepo, logg, storefrontMetrics)
	if err != nil {
		return err
	}

	cronService, err := newCronService(cfg, logg, dbClient, redisClient, receiptRepo, workspaces, cronMetrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.App.Port
	ctx = logg.WithField(ctx, "addr", addr)

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, promRegistry, storefrontService, checkoutService),
	}

	cronDone := make(chan error, 1)
	go func() {
		cronDone <- cronService.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			return err
		}
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	if cronErr := <-cronDone; cronErr != nil && !errors.Is(cronErr, context.Canceled) {
		shutdownErr = multierr.Append(shutdownErr, cronErr)
	}
	return shutdownErr
}

// newCronService schedules the housekeeping jobs. Workspaces live in this
// process's memory, so eviction runs on every replica; receipt retention
// touches the shared database and runs under the cluster lock.
func newCronService(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	receiptRepo receipts.Repository,
	workspaces storefront.Registry,
	cronMetrics *metrics.CronJobMetrics,
) (*cron.Service, error) {
	evictionJob, err := cron.NewWorkspaceEvictionJob(cron.WorkspaceEvictionJobParams{
		Logger:   logg,
		Registry: workspaces,
		IdleTTL:  cfg.Storefront.WorkspaceIdleTTL,
	})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewReceiptRetentionJob(cron.ReceiptRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: receiptRepo,
		Retention:  cfg.Storefront.ReceiptRetention,
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	if err := registry.Register(cron.Entry{Job: evictionJob, Every: cfg.Storefront.EvictionInterval, Scope: cron.ScopeInstance}); err != nil {
		return nil, err
	}
	if err := registry.Register(cron.Entry{Job: retentionJob, Every: cfg.Storefront.RetentionEvery, Scope: cron.ScopeShared}); err != nil {
		return nil, err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron:"+lockEnv(cfg.App.Env)+":shared"), instance.GetID(), 0)
	if err != nil {
		return nil, err
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
	})
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
