// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// コメント投稿の結果ラベル
const (
	CommentAccepted     = "accepted"
	CommentSpam         = "spam"
	CommentHoneypot     = "honeypot"
	CommentCaptchaFail  = "captcha_failed"
	CommentRateLimited  = "rate_limited"
	CommentInvalidInput = "invalid_input"
)

// クラップの結果ラベル
const (
	ClapAccepted    = "clapped"
	ClapCeiling     = "ceiling"
	ClapRateLimited = "rate_limited"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ハンドラー、ワーカーから利用する。
type MetricsCollector interface {
	RecordCommentOutcome(outcome string)
	RecordClapOutcome(outcome string)
	RecordModerationAction(action string)
	RecordCaptchaLatency(duration time.Duration)
	RecordRateLimitPurged(count int64)
	RecordHTTPStatus(action string, statusCode int)
	RecordPanic(route string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	comments       *prometheus.CounterVec
	claps          *prometheus.CounterVec
	moderation     *prometheus.CounterVec
	captchaLatency prometheus.Histogram
	purged         prometheus.Counter
	httpStatus     *prometheus.CounterVec
	panics         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		comments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogpulse_comment_submissions_total",
			Help: "コメント投稿の結果別件数",
		}, []string{"outcome"}),
		claps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogpulse_claps_total",
			Help: "クラップの結果別件数",
		}, []string{"outcome"}),
		moderation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogpulse_moderation_actions_total",
			Help: "モデレーション操作の種別ごとの件数",
		}, []string{"action"}),
		captchaLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blogpulse_captcha_verify_seconds",
			Help:    "CAPTCHA検証のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogpulse_rate_limit_purged_total",
			Help: "クリーンアップで削除したレート制限記録の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogpulse_action_responses_total",
			Help: "アクション別・HTTPステータスコード別のレスポンス数",
		}, []string{"action", "status_code"}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogpulse_http_panics_total",
			Help: "ハンドラーで回収したpanicのルート別件数",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.comments,
		c.claps,
		c.moderation,
		c.captchaLatency,
		c.purged,
		c.httpStatus,
		c.panics,
	)

	return c
}

// RecordCommentOutcome はコメント投稿の結果を記録する。
func (c *Collector) RecordCommentOutcome(outcome string) {
	c.comments.WithLabelValues(outcome).Inc()
}

// RecordClapOutcome はクラップの結果を記録する。
func (c *Collector) RecordClapOutcome(outcome string) {
	c.claps.WithLabelValues(outcome).Inc()
}

// RecordModerationAction はモデレーション操作を記録する。
func (c *Collector) RecordModerationAction(action string) {
	c.moderation.WithLabelValues(action).Inc()
}

// RecordCaptchaLatency はCAPTCHA検証のレイテンシを記録する。
func (c *Collector) RecordCaptchaLatency(duration time.Duration) {
	c.captchaLatency.Observe(duration.Seconds())
}

// RecordRateLimitPurged は削除したレート制限記録の件数を加算する。
func (c *Collector) RecordRateLimitPurged(count int64) {
	c.purged.Add(float64(count))
}

// RecordHTTPStatus はアクションのHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(action string, statusCode int) {
	c.httpStatus.WithLabelValues(action, strconv.Itoa(statusCode)).Inc()
}

// RecordPanic は回収したpanicを記録する。
func (c *Collector) RecordPanic(route string) {
	c.panics.WithLabelValues(route).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordCommentOutcome(string) {}
func (Nop) RecordClapOutcome(string) {}
func (Nop) RecordModerationAction(string) {}
func (Nop) RecordCaptchaLatency(time.Duration) {}
func (Nop) RecordRateLimitPurged(int64) {}
func (Nop) RecordHTTPStatus(string, int) {}
func (Nop) RecordPanic(string) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
