package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ogurasousui/spendsync/internal/platform/config"
)

// slowQueryThreshold を超えたクエリは warn レベルで記録されます。
const slowQueryThreshold = 500 * time.Millisecond

// BuildPoolConfig は database 設定から pgxpool.Config を構築します。
func BuildPoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}

	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}

	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	return poolCfg, nil
}

// NewPool は pgxpool.Pool を生成し疎通確認を行います。
// クエリは logger に debug レベルで記録されます。
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := BuildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	poolCfg.ConnConfig.Tracer = &queryTracer{logger: logger.With().Str("component", "postgres").Logger()}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	logger.Info().
		Str("host", poolCfg.ConnConfig.Host).
		Str("database", poolCfg.ConnConfig.Database).
		Int32("max_conns", poolCfg.MaxConns).
		Msg("postgres pool ready")

	return pool, nil
}

type queryStartKey struct{}

type queryStart struct {
	sql     string
	startAt time.Time
}

// queryTracer は pgx.QueryTracer を zerolog で実装します。
type queryTracer struct {
	logger zerolog.Logger
	now    func() time.Time
}

func (t *queryTracer) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, startAt: t.clock()})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	elapsed := t.clock().Sub(start.startAt)

	switch {
	case data.Err != nil:
		t.logger.Warn().Err(data.Err).Dur("elapsed", elapsed).Str("sql", start.sql).Msg("query failed")
	case elapsed > slowQueryThreshold:
		t.logger.Warn().Dur("elapsed", elapsed).Str("sql", start.sql).Msg("slow query")
	default:
		t.logger.Debug().Dur("elapsed", elapsed).Str("command", data.CommandTag.String()).Msg("query executed")
	}
}
