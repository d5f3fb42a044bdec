package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// --- モック ---

type mockPurger struct {
	calls   atomic.Int32
	deleted int64
	err     error
}

func (m *mockPurger) EvictExpired(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	return m.deleted, m.err
}

type mockMetrics struct {
	purged int64
}

func (m *mockMetrics) RecordCommentOutcome(string) {}
func (m *mockMetrics) RecordClapOutcome(string) {}
func (m *mockMetrics) RecordModerationAction(string) {}
func (m *mockMetrics) RecordCaptchaLatency(time.Duration) {}
func (m *mockMetrics) RecordRateLimitPurged(count int64) { m.purged += count }
func (m *mockMetrics) RecordHTTPStatus(action string, code int) {}
func (m *mockMetrics) RecordPanic(string) {}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// --- テスト ---

func TestNewCleanupJob_DefaultInterval(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{}, nil, newTestLogger(&buf))

	if job.Interval != time.Hour {
		t.Errorf("Interval = %v, want 1h", job.Interval)
	}
}

func TestCleanupJob_Run_RecordsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{deleted: 12}
	m := &mockMetrics{}
	job := NewCleanupJob(purger, m, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run がエラーを返した: %v", err)
	}

	if m.purged != 12 {
		t.Errorf("purged = %d, want 12", m.purged)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("ログのパースに失敗: %v (%s)", err, buf.String())
	}
	if entry["deleted_count"] != float64(12) {
		t.Errorf("deleted_count = %v, want 12", entry["deleted_count"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("duration_ms がログに含まれるべき")
	}
}

func TestCleanupJob_Run_ZeroRowsIsNotAnError(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{}, nil, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("削除対象0件でエラーになってはならない: %v", err)
	}
}

func TestCleanupJob_Run_ReturnsAndLogsError(t *testing.T) {
	var buf bytes.Buffer
	storeErr := errors.New("connection refused")
	job := NewCleanupJob(&mockPurger{err: storeErr}, nil, newTestLogger(&buf))

	err := job.Run(context.Background())
	if !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want wrapped %v", err, storeErr)
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("ERRORレベルのログが出力されるべき: %s", buf.String())
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndPeriodically(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{}
	job := NewCleanupJob(purger, nil, newTestLogger(&buf))
	job.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	time.Sleep(55 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ctxキャンセル後にStartが終了しない")
	}

	if n := purger.calls.Load(); n < 2 {
		t.Errorf("EvictExpired calls = %d, want >= 2", n)
	}
}
