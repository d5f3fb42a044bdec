package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は名前とラベルが一致するメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

func TestRecordCommentOutcome_CountsPerOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCommentOutcome(CommentAccepted)
	c.RecordCommentOutcome(CommentAccepted)
	c.RecordCommentOutcome(CommentSpam)

	m := findMetric(t, reg, "blogpulse_comment_submissions_total", map[string]string{"outcome": CommentAccepted})
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("accepted = %v, want 2", got)
	}
	m = findMetric(t, reg, "blogpulse_comment_submissions_total", map[string]string{"outcome": CommentSpam})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("spam = %v, want 1", got)
	}
}

func TestRecordClapOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordClapOutcome(ClapCeiling)

	m := findMetric(t, reg, "blogpulse_claps_total", map[string]string{"outcome": ClapCeiling})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("ceiling = %v, want 1", got)
	}
}

func TestRecordModerationAction(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordModerationAction("approve")

	m := findMetric(t, reg, "blogpulse_moderation_actions_total", map[string]string{"action": "approve"})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("approve = %v, want 1", got)
	}
}

func TestRecordCaptchaLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCaptchaLatency(150 * time.Millisecond)

	m := findMetric(t, reg, "blogpulse_captcha_verify_seconds", nil)
	if got := m.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestRecordRateLimitPurged(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRateLimitPurged(7)
	c.RecordRateLimitPurged(3)

	m := findMetric(t, reg, "blogpulse_rate_limit_purged_total", nil)
	if got := m.GetCounter().GetValue(); got != 10 {
		t.Errorf("purged = %v, want 10", got)
	}
}

func TestRecordHTTPStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus("toggleLike", 429)

	m := findMetric(t, reg, "blogpulse_action_responses_total", map[string]string{
		"action":      "toggleLike",
		"status_code": "429",
	})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("toggleLike/429 = %v, want 1", got)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCommentOutcome(CommentAccepted)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(w.Result().Body)
	if !strings.Contains(string(body), "blogpulse_comment_submissions_total") {
		t.Error("response should contain blogpulse_comment_submissions_total")
	}
}

func TestRecordPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPanic("/_actions/{action}")
	c.RecordPanic("/_actions/{action}")

	m := findMetric(t, reg, "blogpulse_http_panics_total", map[string]string{"route": "/_actions/{action}"})
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("panics = %v, want 2", got)
	}
}
