// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 登録フローやバインディング書き込み、ワーカーから利用する。
type MetricsCollector interface {
	RecordRegistrationStarted()
	RecordCodeDelivered(duration time.Duration)
	RecordCodeDeliveryFailure(reason string)
	RecordConfirmation()
	RecordCodeMismatch()
	RecordBindingWrite(success bool)
	RecordSessionsSwept(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrationsStarted prometheus.Counter
	codesDelivered       prometheus.Counter
	deliveryFail         *prometheus.CounterVec
	deliveryLatency      prometheus.Histogram
	confirmations        prometheus.Counter
	codeMismatches       prometheus.Counter
	bindingWrites        *prometheus.CounterVec
	sessionsSwept        prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emaildid_registrations_started_total",
			Help: "メールアドレスが受理され鍵ペアが生成された登録の合計数",
		}),
		codesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emaildid_codes_delivered_total",
			Help: "確認コード配送成功の合計数",
		}),
		deliveryFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emaildid_code_delivery_fail_total",
			Help: "確認コード配送失敗の合計数",
		}, []string{"reason"}),
		deliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "emaildid_code_delivery_latency_seconds",
			Help:    "確認コード配送のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		confirmations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emaildid_confirmations_total",
			Help: "確認が完了しDIDが発行された合計数",
		}),
		codeMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emaildid_code_mismatch_total",
			Help: "確認コード不一致の合計数",
		}),
		bindingWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emaildid_binding_writes_total",
			Help: "バインディング書き込みの結果別合計数",
		}, []string{"result"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emaildid_sessions_swept_total",
			Help: "アイドルにより破棄された登録セッションの合計数",
		}),
	}

	reg.MustRegister(
		c.registrationsStarted,
		c.codesDelivered,
		c.deliveryFail,
		c.deliveryLatency,
		c.confirmations,
		c.codeMismatches,
		c.bindingWrites,
		c.sessionsSwept,
	)

	return c
}

// RecordRegistrationStarted は登録開始を記録する。
func (c *Collector) RecordRegistrationStarted() {
	c.registrationsStarted.Inc()
}

// RecordCodeDelivered は配送成功とそのレイテンシを記録する。
func (c *Collector) RecordCodeDelivered(duration time.Duration) {
	c.codesDelivered.Inc()
	c.deliveryLatency.Observe(duration.Seconds())
}

// RecordCodeDeliveryFailure は配送失敗を記録する。
func (c *Collector) RecordCodeDeliveryFailure(reason string) {
	c.deliveryFail.WithLabelValues(reason).Inc()
}

// RecordConfirmation は確認完了を記録する。
func (c *Collector) RecordConfirmation() {
	c.confirmations.Inc()
}

// RecordCodeMismatch はコード不一致を記録する。
func (c *Collector) RecordCodeMismatch() {
	c.codeMismatches.Inc()
}

// RecordBindingWrite はバインディング書き込みの結果を記録する。
func (c *Collector) RecordBindingWrite(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.bindingWrites.WithLabelValues(result).Inc()
}

// RecordSessionsSwept は破棄したセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int) {
	c.sessionsSwept.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordRegistrationStarted() {}
func (Nop) RecordCodeDelivered(time.Duration) {}
func (Nop) RecordCodeDeliveryFailure(string) {}
func (Nop) RecordConfirmation() {}
func (Nop) RecordCodeMismatch() {}
func (Nop) RecordBindingWrite(bool) {}
func (Nop) RecordSessionsSwept(int) {}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
var _ MetricsCollector = Nop{}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集に失敗したメトリクスがあっても、取得できた分は返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
