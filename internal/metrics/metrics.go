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
// サービス層・ワーカー・HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordFastStarted()
	RecordFastCompleted(goalReached bool)
	RecordFoodParse(source string)
	RecordFoodParseFailure(reason string)
	RecordAILatency(duration time.Duration)
	RecordReminderSent(channel string)
	RecordReminderFailed(channel string)
	RecordInstancesGenerated(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fastsStarted       prometheus.Counter
	fastsCompleted     *prometheus.CounterVec
	foodParse          *prometheus.CounterVec
	foodParseFail      *prometheus.CounterVec
	aiLatency          prometheus.Histogram
	remindersSent      *prometheus.CounterVec
	remindersFailed    *prometheus.CounterVec
	instancesGenerated prometheus.Counter
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fastsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fastrack_fasts_started_total",
			Help: "開始されたファスティングの合計数",
		}),
		fastsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fastrack_fasts_completed_total",
			Help: "完了したファスティングの合計数（目標到達有無別）",
		}, []string{"goal_reached"}),
		foodParse: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fastrack_food_parse_total",
			Help: "食事テキスト解析の成功数（解析元別）",
		}, []string{"source"}),
		foodParseFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fastrack_food_parse_fail_total",
			Help: "食事テキスト解析の失敗数（理由別）",
		}, []string{"reason"}),
		aiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fastrack_ai_latency_seconds",
			Help:    "AI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		remindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fastrack_reminders_sent_total",
			Help: "配信したリマインダーの合計数",
		}, []string{"channel"}),
		remindersFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fastrack_reminders_failed_total",
			Help: "配信に失敗したリマインダーの合計数",
		}, []string{"channel"}),
		instancesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fastrack_schedule_instances_generated_total",
			Help: "繰り返し予定から生成したインスタンスの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fastrack_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.fastsStarted,
		c.fastsCompleted,
		c.foodParse,
		c.foodParseFail,
		c.aiLatency,
		c.remindersSent,
		c.remindersFailed,
		c.instancesGenerated,
		c.httpStatus,
	)

	return c
}

// RecordFastStarted はファスティング開始を記録する。
func (c *Collector) RecordFastStarted() {
	c.fastsStarted.Inc()
}

// RecordFastCompleted はファスティング完了を記録する。
func (c *Collector) RecordFastCompleted(goalReached bool) {
	c.fastsCompleted.WithLabelValues(strconv.FormatBool(goalReached)).Inc()
}

// RecordFoodParse は食事テキスト解析の成功を記録する。
func (c *Collector) RecordFoodParse(source string) {
	c.foodParse.WithLabelValues(source).Inc()
}

// RecordFoodParseFailure は食事テキスト解析の失敗を記録する。
func (c *Collector) RecordFoodParseFailure(reason string) {
	c.foodParseFail.WithLabelValues(reason).Inc()
}

// RecordAILatency はAI呼び出しのレイテンシを記録する。
func (c *Collector) RecordAILatency(duration time.Duration) {
	c.aiLatency.Observe(duration.Seconds())
}

// RecordReminderSent はリマインダー配信成功を記録する。
func (c *Collector) RecordReminderSent(channel string) {
	c.remindersSent.WithLabelValues(channel).Inc()
}

// RecordReminderFailed はリマインダー配信失敗を記録する。
func (c *Collector) RecordReminderFailed(channel string) {
	c.remindersFailed.WithLabelValues(channel).Inc()
}

// RecordInstancesGenerated は生成した予定インスタンス数を記録する。
func (c *Collector) RecordInstancesGenerated(count int) {
	c.instancesGenerated.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。メトリクス未設定時とテストで使用する。
type Nop struct{}

func (Nop) RecordFastStarted()            {}
func (Nop) RecordFastCompleted(bool)      {}
func (Nop) RecordFoodParse(string)        {}
func (Nop) RecordFoodParseFailure(string) {}
func (Nop) RecordAILatency(time.Duration) {}
func (Nop) RecordReminderSent(string)     {}
func (Nop) RecordReminderFailed(string)   {}
func (Nop) RecordInstancesGenerated(int)  {}
func (Nop) RecordHTTPStatus(int)          {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
