package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staff-portal/internal/config"
	"staff-portal/internal/database"
	httpapi "staff-portal/internal/http"
	"staff-portal/internal/identity"
	"staff-portal/internal/logger"
	"staff-portal/internal/repository"
	"staff-portal/internal/service"
	"staff-portal/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	lg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "staff-portal")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		lg.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// 身份服务：未配置 URL 时使用内存 provider（仅本地开发）
	var provider identity.Provider
	if cfg.Identity.URL != "" {
		provider = identity.NewGoTrueClient(cfg.Identity.URL, cfg.Identity.ServiceKey, cfg.Identity.Timeout, cfg.Identity.RetryCount, lg)
	} else {
		lg.Warn("IDENTITY_URL not set, using in-memory identity provider")
		provider = identity.NewMemoryProvider()
	}

	accountsRepo := repository.NewPostgresAccountsRepository(db)
	auditRepo := repository.NewPostgresAuditLogsRepository(db)
	branchesRepo := repository.NewPostgresBranchesRepository(db)
	rolesRepo := repository.NewPostgresRolesRepository(db)

	pages := service.PageOptions{
		DefaultPageSize: cfg.Provisioning.DefaultPageSize,
		MaxPageSize:     cfg.Provisioning.MaxPageSize,
	}
	opts := service.ProvisioningOptions{
		IdempotencyTTL:      cfg.Provisioning.IdempotencyTTL,
		CompensationTimeout: cfg.Provisioning.CompensationTimeout,
	}

	// Redis 可选：幂等键 + orphan stream + 对账
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			lg.Warn("Redis not reachable, idempotency and orphan reporting degraded", zap.Error(err))
		}
		pingCancel()
		opts.IdempotencyKV = store.NewRedisKV(redisClient)
		opts.Orphans = service.NewStreamOrphanReporter(redisClient, cfg.Provisioning.OrphanStream)
	} else {
		lg.Warn("Redis disabled, idempotency keys and orphan reconciliation are off")
	}

	audit := service.NewAuditService(auditRepo, cfg.Provisioning.SystemActorID, pages, lg)
	provisioning := service.NewProvisioningService(accountsRepo, provider, audit, opts, lg)
	queries := service.NewAccountQueryService(accountsRepo, pages, cfg.Provisioning.ExportMaxRows, lg)
	reference := service.NewReferenceService(branchesRepo, rolesRepo, audit, pages, lg)

	router := httpapi.NewRouter(lg)
	router.RegisterAccountRoutes(httpapi.NewAccountsHandler(provisioning, queries, lg))
	router.RegisterAuditLogRoutes(httpapi.NewAuditLogsHandler(audit, lg))
	router.RegisterReferenceRoutes(httpapi.NewReferenceHandler(reference, lg))

	srv := httpapi.NewServer(cfg.HTTP.Addr, router, lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if redisClient != nil {
		reconciler := service.NewReconciler(redisClient, service.ReconcilerConfig{
			Stream:   cfg.Provisioning.OrphanStream,
			Group:    cfg.Provisioning.ConsumerGroup,
			Consumer: cfg.Provisioning.ConsumerName,
			Batch:    cfg.Provisioning.ReconcileBatch,
		}, provider, accountsRepo, lg)
		go reconciler.Run(ctx, cfg.Provisioning.ReconcileInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		lg.Error("HTTP server stopped", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
