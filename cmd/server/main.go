package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/spendsync/internal/adapters/directory/factory"
	"github.com/ogurasousui/spendsync/internal/adapters/grpc/handler"
	"github.com/ogurasousui/spendsync/internal/adapters/repository/postgres"
	"github.com/ogurasousui/spendsync/internal/core/department"
	"github.com/ogurasousui/spendsync/internal/core/directory"
	"github.com/ogurasousui/spendsync/internal/core/directorysync"
	"github.com/ogurasousui/spendsync/internal/core/employee"
	"github.com/ogurasousui/spendsync/internal/core/integration"
	"github.com/ogurasousui/spendsync/internal/core/organization"
	"github.com/ogurasousui/spendsync/internal/platform/config"
	pg "github.com/ogurasousui/spendsync/internal/platform/db/postgres"
	"github.com/ogurasousui/spendsync/internal/platform/logger"
	"github.com/ogurasousui/spendsync/internal/platform/metrics"
	"github.com/ogurasousui/spendsync/internal/platform/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	flag.Parse()

	// .env が無い環境では環境変数と設定ファイルのみを使います。
	_ = godotenv.Load()

	cfg, err := config.Load(config.ResolvePath(*configPath))
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	dbPool, err := pg.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	txManager := pg.NewTransactionManager(dbPool)

	orgRepo := postgres.NewOrganizationRepository(dbPool)
	employeeRepo := postgres.NewEmployeeRepository(dbPool)
	departmentRepo := postgres.NewDepartmentRepository(dbPool)
	integrationRepo := postgres.NewIntegrationRepository(dbPool)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterPoolStats(registry, dbPool)
	recorder := metrics.NewSyncRecorder(registry)

	providers := factory.New(cfg.Google, cfg.LDAP, factory.WithLogger(log))

	orgSvc := organization.NewService(orgRepo, nil, txManager)
	employeeSvc := employee.NewService(employeeRepo, nil, txManager)
	departmentSvc := department.NewService(departmentRepo, nil, txManager)
	integrationSvc := integration.NewService(integrationRepo, orgRepo, directory.ConnectionTester{Factory: providers}, nil, txManager)
	syncSvc := directorysync.NewService(directorysync.Dependencies{
		Integrations: integrationRepo,
		Employees:    employeeRepo,
		Departments:  departmentRepo,
		Providers:    providers,
	},
		directorysync.WithTransactionManager(txManager),
		directorysync.WithLogger(log),
		directorysync.WithRecorder(recorder),
		directorysync.WithPageSize(cfg.Sync.PageSize),
	)

	grpcServer := server.New(cfg.Server.ListenAddr, server.Services{
		Organizations: handler.NewOrganizationGrpcHandler(orgSvc),
		Employees:     handler.NewEmployeeGrpcHandler(employeeSvc, handler.WithDefaultCurrency(cfg.Sync.DefaultCurrency)),
		Departments:   handler.NewDepartmentGrpcHandler(departmentSvc),
		Integrations:  handler.NewIntegrationGrpcHandler(integrationSvc, cfg.Sync.OverdueThreshold),
		DirectorySync: handler.NewDirectorySyncGrpcHandler(syncSvc),
	}, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("gRPC server listening")
		return grpcServer.Run(gctx)
	})

	if cfg.Server.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           metricsMux(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.Server.MetricsAddr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func metricsMux(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
