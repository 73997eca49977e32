package metrics

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ogurasousui/spendsync/internal/core/directory"
	"github.com/ogurasousui/spendsync/internal/core/directorysync"
	"github.com/ogurasousui/spendsync/internal/core/integration"
)

const namespace = "spendsync"

// SyncRecorder はディレクトリ同期の計測値を Prometheus に記録します。
type SyncRecorder struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	records  *prometheus.CounterVec
	lastRun  *prometheus.GaugeVec
	unmapped *prometheus.CounterVec
}

// NewSyncRecorder は reg にメトリクスを登録した SyncRecorder を生成します。
func NewSyncRecorder(reg prometheus.Registerer) *SyncRecorder {
	factory := promauto.With(reg)

	return &SyncRecorder{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory_sync",
			Name:      "runs_total",
			Help:      "Total number of directory sync runs broken down by kind, provider and result.",
		}, []string{"kind", "provider", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "directory_sync",
			Name:      "duration_seconds",
			Help:      "Duration of directory sync runs.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"kind", "provider"}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory_sync",
			Name:      "records_total",
			Help:      "Directory records processed broken down by outcome.",
		}, []string{"kind", "provider", "outcome"}),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "directory_sync",
			Name:      "last_completed_timestamp_seconds",
			Help:      "Unix time of the last completed directory sync run.",
		}, []string{"kind", "provider"}),
		unmapped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory_sync",
			Name:      "unmapped_status_total",
			Help:      "Directory user statuses that fell back to the default employee status.",
		}, []string{"provider", "status"}),
	}
}

// RunCompleted は完了した同期の結果を記録します。
func (r *SyncRecorder) RunCompleted(kind directorysync.Kind, provider integration.Provider, result *directorysync.SyncResult) {
	if result == nil {
		return
	}
	outcome := "success"
	if !result.Success {
		outcome = "partial"
	}
	k, p := string(kind), string(provider)

	r.runs.WithLabelValues(k, p, outcome).Inc()
	r.duration.WithLabelValues(k, p).Observe(result.CompletedAt.Sub(result.StartedAt).Seconds())
	r.records.WithLabelValues(k, p, "created").Add(float64(result.Stats.Created))
	r.records.WithLabelValues(k, p, "updated").Add(float64(result.Stats.Updated))
	r.records.WithLabelValues(k, p, "skipped").Add(float64(result.Stats.Skipped))
	r.records.WithLabelValues(k, p, "error").Add(float64(result.Stats.Errors))
	r.lastRun.WithLabelValues(k, p).Set(float64(result.CompletedAt.Unix()))
}

// RunFailed は致命的に失敗した同期を記録します。
func (r *SyncRecorder) RunFailed(kind directorysync.Kind, provider integration.Provider, elapsed time.Duration) {
	k, p := string(kind), string(provider)
	r.runs.WithLabelValues(k, p, "failed").Inc()
	r.duration.WithLabelValues(k, p).Observe(elapsed.Seconds())
}

// UnmappedStatus は対応表にないディレクトリ状態を記録します。
func (r *SyncRecorder) UnmappedStatus(provider integration.Provider, status directory.UserStatus) {
	r.unmapped.WithLabelValues(string(provider), string(status)).Inc()
}

// RegisterPoolStats は pgxpool の接続数をゲージとして登録します。
func RegisterPoolStats(reg prometheus.Registerer, pool *pgxpool.Pool) {
	factory := promauto.With(reg)
	gauge := func(name, help string, fn func(*pgxpool.Stat) float64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(pool.Stat()) })
	}

	gauge("total_conns", "Total connections in the pool.", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) })
	gauge("acquired_conns", "Connections currently in use.", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) })
	gauge("idle_conns", "Idle connections in the pool.", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) })
}

// Handler は gatherer の内容を公開する HTTP ハンドラを返します。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
