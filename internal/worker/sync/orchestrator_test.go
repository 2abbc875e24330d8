package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/config"
	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// stubPipeline は呼び出しごとに事前定義した結果を返すPipelineRunner。
type stubPipeline struct {
	results []model.RunResult
	calls   int
}

func (s *stubPipeline) RunOnce(ctx context.Context, account config.AccountConfig) model.RunResult {
	r := s.results[s.calls]
	s.calls++
	return r
}

// stubSessionStore はDrop呼び出しを記録するsession.Store。
type stubSessionStore struct {
	drops int
}

func (s *stubSessionStore) Save(accountID string, cookies []*http.Cookie) error { return nil }
func (s *stubSessionStore) Load(accountID string) ([]*http.Cookie, error)       { return nil, nil }
func (s *stubSessionStore) Drop(accountID string) error {
	s.drops++
	return nil
}

// noopCollector は何も記録しないMetricsCollector。
type noopCollector struct {
	retries int
}

func (n *noopCollector) RecordSyncSuccess(accountID string)            {}
func (n *noopCollector) RecordSyncFailure(accountID string)            {}
func (n *noopCollector) RecordRetry(accountID string)                  { n.retries++ }
func (n *noopCollector) RecordScrapeLatency(d time.Duration)           {}
func (n *noopCollector) RecordAssignmentsUpserted(count int)           {}
func (n *noopCollector) RecordNotificationSent(notificationCase string) {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func success(total int) model.RunResult {
	return model.RunResult{Status: model.SyncStatusSuccess, AccountName: "alice", Total: total}
}

func newTestOrchestrator(p *stubPipeline, store *stubSessionStore) (*Orchestrator, *[]time.Duration) {
	o := NewOrchestrator(p, store, &noopCollector{}, discardLogger(), 3)
	var slept []time.Duration
	o.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return o, &slept
}

func TestRunWithRetry_FirstAttemptSucceeds(t *testing.T) {
	p := &stubPipeline{results: []model.RunResult{success(5)}}
	store := &stubSessionStore{}
	o, slept := newTestOrchestrator(p, store)

	result := o.RunWithRetry(context.Background(), config.AccountConfig{ID: "acc1", Name: "alice"})

	if !result.Succeeded() {
		t.Fatalf("成功が返されなかった: %+v", result)
	}
	if p.calls != 1 {
		t.Errorf("試行回数が不正: %d", p.calls)
	}
	if store.drops != 0 {
		t.Errorf("初回試行でセッションが破棄された: %d", store.drops)
	}
	if len(*slept) != 0 {
		t.Errorf("初回成功で待機が発生した: %v", *slept)
	}
}

func TestRunWithRetry_ZeroResultIsRetried(t *testing.T) {
	// エラーなしの0件は成功扱いにせず、予算を使い切るまでリトライする
	p := &stubPipeline{results: []model.RunResult{success(0), success(0), success(0)}}
	store := &stubSessionStore{}
	o, slept := newTestOrchestrator(p, store)

	result := o.RunWithRetry(context.Background(), config.AccountConfig{ID: "acc1", Name: "alice"})

	if p.calls != 3 {
		t.Errorf("試行回数が不正: got %d, want 3", p.calls)
	}
	// 最終試行の結果がそのまま返る
	if result.Status != model.SyncStatusSuccess || result.Total != 0 {
		t.Errorf("最終結果が書き換えられた: %+v", result)
	}
	if result.Succeeded() {
		t.Error("0件の結果が成功と判定された")
	}
	// 2回目以降の試行前にセッションが破棄される
	if store.drops != 2 {
		t.Errorf("セッション破棄回数が不正: got %d, want 2", store.drops)
	}
	// 待機スケジュールは30秒、60秒
	want := []time.Duration{30 * time.Second, 60 * time.Second}
	if len(*slept) != 2 || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("待機スケジュールが不正: %v", *slept)
	}
}

func TestRunWithRetry_RecoversOnSecondAttempt(t *testing.T) {
	failed := model.RunResult{
		Status:      model.SyncStatusError,
		AccountName: "alice",
		Err:         &model.PipelineError{AccountName: "alice", Err: errors.New("login failed")},
	}
	p := &stubPipeline{results: []model.RunResult{failed, success(3)}}
	store := &stubSessionStore{}
	o, _ := newTestOrchestrator(p, store)

	result := o.RunWithRetry(context.Background(), config.AccountConfig{ID: "acc1", Name: "alice"})

	if !result.Succeeded() {
		t.Fatalf("2回目の成功が返されなかった: %+v", result)
	}
	if p.calls != 2 {
		t.Errorf("試行回数が不正: %d", p.calls)
	}
	if store.drops != 1 {
		t.Errorf("セッション破棄回数が不正: %d", store.drops)
	}
}

func TestRunWithRetry_ExhaustionReturnsLastResultVerbatim(t *testing.T) {
	lastErr := &model.PipelineError{AccountName: "alice", Err: errors.New("parse error")}
	failed := model.RunResult{Status: model.SyncStatusError, AccountName: "alice", Err: lastErr}
	p := &stubPipeline{results: []model.RunResult{failed, failed, failed}}
	o, _ := newTestOrchestrator(p, &stubSessionStore{})

	result := o.RunWithRetry(context.Background(), config.AccountConfig{ID: "acc1", Name: "alice"})

	if result.Status != model.SyncStatusError {
		t.Errorf("ステータスが不正: %v", result.Status)
	}
	// 合成エラーで上書きされず、最終試行のエラーがそのまま残る
	if !errors.Is(result.Err, lastErr) {
		t.Errorf("最終エラーが書き換えられた: %v", result.Err)
	}
}

func TestRunWithRetry_CancellationStopsRetries(t *testing.T) {
	p := &stubPipeline{results: []model.RunResult{success(0), success(0), success(0)}}
	o, _ := newTestOrchestrator(p, &stubSessionStore{})
	o.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	result := o.RunWithRetry(context.Background(), config.AccountConfig{ID: "acc1", Name: "alice"})

	if p.calls != 1 {
		t.Errorf("キャンセル後も試行が継続された: %d", p.calls)
	}
	if result.Succeeded() {
		t.Error("キャンセル時の結果が成功になっている")
	}
}
