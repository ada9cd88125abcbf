// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 会話エンジンとゲートウェイから利用する。
type MetricsCollector interface {
	RecordRegistrationStaged()
	RegistrationCompleted()
	RegistrationCancelled()
	DialogueTransition(from, to string)
	RecordAvatarIngest(path string)
	RecordAvatarIngestFailure(path string)
	RecordFinalizeLatency(duration time.Duration)
	ObserveHTTPStatus(method, path string, status int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrationsStaged    prometheus.Counter
	registrationsCompleted prometheus.Counter
	registrationsCancelled prometheus.Counter
	dialogueTransitions    *prometheus.CounterVec
	avatarIngests          *prometheus.CounterVec
	avatarIngestFailures   *prometheus.CounterVec
	httpStatus             *prometheus.CounterVec
	finalizeLatency        prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrationsStaged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardquest_registrations_staged_total",
			Help: "作成された仮登録レコードの合計数",
		}),
		registrationsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardquest_registrations_completed_total",
			Help: "本登録が完了した登録の合計数",
		}),
		registrationsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardquest_registrations_cancelled_total",
			Help: "キャンセルされた登録セッションの合計数",
		}),
		dialogueTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardquest_dialogue_transitions_total",
			Help: "会話状態遷移の合計数",
		}, []string{"from", "to"}),
		avatarIngests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardquest_avatar_ingests_total",
			Help: "経路別のアバター取り込み成功数",
		}, []string{"path"}),
		avatarIngestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardquest_avatar_ingest_failures_total",
			Help: "経路別のアバター取り込み失敗数",
		}, []string{"path"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardquest_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"method", "path", "status_code"}),
		finalizeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardquest_finalize_latency_seconds",
			Help:    "本登録確定（アバター書き込み+レコード挿入）のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.registrationsStaged,
		c.registrationsCompleted,
		c.registrationsCancelled,
		c.dialogueTransitions,
		c.avatarIngests,
		c.avatarIngestFailures,
		c.httpStatus,
		c.finalizeLatency,
	)

	return c
}

// RecordRegistrationStaged は仮登録レコードの作成を記録する。
func (c *Collector) RecordRegistrationStaged() {
	c.registrationsStaged.Inc()
}

// RegistrationCompleted は本登録の完了を記録する。
func (c *Collector) RegistrationCompleted() {
	c.registrationsCompleted.Inc()
}

// RegistrationCancelled は登録セッションのキャンセルを記録する。
func (c *Collector) RegistrationCancelled() {
	c.registrationsCancelled.Inc()
}

// DialogueTransition は会話状態遷移を記録する。
func (c *Collector) DialogueTransition(from, to string) {
	c.dialogueTransitions.WithLabelValues(from, to).Inc()
}

// RecordAvatarIngest は経路別のアバター取り込み成功を記録する。
// pathは"upload"または"profile_photo"。
func (c *Collector) RecordAvatarIngest(path string) {
	c.avatarIngests.WithLabelValues(path).Inc()
}

// RecordAvatarIngestFailure は経路別のアバター取り込み失敗を記録する。
func (c *Collector) RecordAvatarIngestFailure(path string) {
	c.avatarIngestFailures.WithLabelValues(path).Inc()
}

// RecordFinalizeLatency は本登録確定のレイテンシを記録する。
func (c *Collector) RecordFinalizeLatency(duration time.Duration) {
	c.finalizeLatency.Observe(duration.Seconds())
}

// ObserveHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) ObserveHTTPStatus(method, path string, status int) {
	c.httpStatus.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
