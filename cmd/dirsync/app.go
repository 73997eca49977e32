package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ogurasousui/spendsync/internal/adapters/directory/factory"
	"github.com/ogurasousui/spendsync/internal/adapters/repository/postgres"
	"github.com/ogurasousui/spendsync/internal/core/directory"
	"github.com/ogurasousui/spendsync/internal/core/directorysync"
	"github.com/ogurasousui/spendsync/internal/core/integration"
	"github.com/ogurasousui/spendsync/internal/platform/config"
	pg "github.com/ogurasousui/spendsync/internal/platform/db/postgres"
	"github.com/ogurasousui/spendsync/internal/platform/logger"
)

// app は 1 回のコマンド実行に必要な依存をまとめます。
type app struct {
	log          zerolog.Logger
	pool         *pgxpool.Pool
	sync         *directorysync.Service
	integrations *integration.Service
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ResolvePath(opts.configPath))
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Logging)

	pool, err := pg.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	txManager := pg.NewTransactionManager(pool)
	integrationRepo := postgres.NewIntegrationRepository(pool)
	providers := factory.New(cfg.Google, cfg.LDAP, factory.WithLogger(log))

	return &app{
		log:  log,
		pool: pool,
		sync: directorysync.NewService(directorysync.Dependencies{
			Integrations: integrationRepo,
			Employees:    postgres.NewEmployeeRepository(pool),
			Departments:  postgres.NewDepartmentRepository(pool),
			Providers:    providers,
		},
			directorysync.WithTransactionManager(txManager),
			directorysync.WithLogger(log),
			directorysync.WithPageSize(cfg.Sync.PageSize),
		),
		integrations: integration.NewService(
			integrationRepo,
			postgres.NewOrganizationRepository(pool),
			directory.ConnectionTester{Factory: providers},
			nil,
			txManager,
		),
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}
