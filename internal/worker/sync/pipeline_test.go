package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/config"
	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// stubScraper は固定のスナップショットを返すScraper。
type stubScraper struct {
	snapshot []model.ScrapedAssignment
	err      error
	calls    int
}

func (s *stubScraper) Scrape(ctx context.Context, account config.AccountConfig) ([]model.ScrapedAssignment, error) {
	s.calls++
	return s.snapshot, s.err
}

// stubReconciler は固定のサマリーを返すAssignmentReconciler。
type stubReconciler struct {
	summary *model.ChangeSummary
	err     error
}

func (s *stubReconciler) Reconcile(ctx context.Context, accountID string, snapshot []model.ScrapedAssignment) (*model.ChangeSummary, error) {
	return s.summary, s.err
}

// stubAssignmentRepo はListPendingとMarkNotifiedだけを実装するスタブ。
type stubAssignmentRepo struct {
	pending  []model.Assignment
	notified []string
}

func (s *stubAssignmentRepo) FindByID(ctx context.Context, accountID, id string) (*model.Assignment, error) {
	return nil, nil
}
func (s *stubAssignmentRepo) ListAll(ctx context.Context, accountID string) ([]model.Assignment, error) {
	return nil, nil
}
func (s *stubAssignmentRepo) ListPending(ctx context.Context, accountID string) ([]model.Assignment, error) {
	return s.pending, nil
}
func (s *stubAssignmentRepo) Upsert(ctx context.Context, a *model.Assignment) (bool, error) {
	return false, nil
}
func (s *stubAssignmentRepo) Retire(ctx context.Context, accountID, id string) error { return nil }
func (s *stubAssignmentRepo) MarkNotified(ctx context.Context, accountID, id string) error {
	s.notified = append(s.notified, id)
	return nil
}
func (s *stubAssignmentRepo) Statistics(ctx context.Context, accountID string) (*model.Statistics, error) {
	return &model.Statistics{}, nil
}

// stubSyncLogRepo はAppendを記録するスタブ。
type stubSyncLogRepo struct {
	records []model.SyncRecord
}

func (s *stubSyncLogRepo) Append(ctx context.Context, rec *model.SyncRecord) error {
	s.records = append(s.records, *rec)
	return nil
}
func (s *stubSyncLogRepo) ListRecent(ctx context.Context, accountID string, limit int) ([]model.SyncRecord, error) {
	return nil, nil
}
func (s *stubSyncLogRepo) PruneOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	return 0, nil
}

// stubDispatcher は送信された判定結果を記録するDispatcher。
type stubDispatcher struct {
	dispatched []model.Decision
	separate   int
	err        error
}

func (s *stubDispatcher) Dispatch(ctx context.Context, account config.AccountConfig, d model.Decision) error {
	if s.err != nil {
		return s.err
	}
	s.dispatched = append(s.dispatched, d)
	return nil
}

func (s *stubDispatcher) DispatchSeparate(ctx context.Context, account config.AccountConfig, d model.Decision) error {
	s.separate++
	if s.err != nil {
		return s.err
	}
	s.dispatched = append(s.dispatched, d)
	return nil
}

func smartAccount() config.AccountConfig {
	return config.AccountConfig{
		ID:                   "acc1",
		Name:                 "alice",
		NotificationsEnabled: true,
		UseSmartFusion:       true,
		UrgentThresholdHours: 24,
	}
}

func pendingAssignment(id string, dueIn time.Duration) model.Assignment {
	due := time.Now().Add(dueIn)
	return model.Assignment{ID: id, AccountID: "acc1", Title: "Devoir", DueDate: &due}
}

func newTestPipeline(
	scraper *stubScraper,
	reconciler *stubReconciler,
	repo *stubAssignmentRepo,
	logs *stubSyncLogRepo,
	dispatcher *stubDispatcher,
) *Pipeline {
	return NewPipeline(scraper, &stubScraper{}, reconciler, repo, logs, dispatcher, &noopCollector{}, discardLogger())
}

func TestRunOnce_SuccessWithCombinedNotification(t *testing.T) {
	urgent := pendingAssignment("u1", 10*time.Hour)
	fresh := pendingAssignment("n1", 72*time.Hour)

	scraper := &stubScraper{snapshot: []model.ScrapedAssignment{{Title: "Devoir", Course: "Math"}}}
	reconciler := &stubReconciler{summary: &model.ChangeSummary{New: []model.Assignment{fresh}, Updated: 1}}
	repo := &stubAssignmentRepo{pending: []model.Assignment{urgent, fresh}}
	dispatcher := &stubDispatcher{}
	p := newTestPipeline(scraper, reconciler, repo, &stubSyncLogRepo{}, dispatcher)

	result := p.RunOnce(context.Background(), smartAccount())

	if !result.Succeeded() {
		t.Fatalf("成功が返されなかった: %+v", result)
	}
	if result.Total != 2 || result.New != 1 || result.Pending != 2 {
		t.Errorf("カウントが不正: %+v", result)
	}

	if len(dispatcher.dispatched) != 1 {
		t.Fatalf("送信数が不正: %d", len(dispatcher.dispatched))
	}
	if dispatcher.dispatched[0].Case != model.CaseCombined {
		t.Errorf("通知ケースが不正: %v", dispatcher.dispatched[0].Case)
	}

	// 新規と緊急の両方の通知記録が更新される（重複なし）
	if len(repo.notified) != 2 {
		t.Errorf("通知記録の更新が不正: %v", repo.notified)
	}
}

func TestRunOnce_ScrapeFailure(t *testing.T) {
	scraper := &stubScraper{err: errors.New("login failed")}
	logs := &stubSyncLogRepo{}
	p := newTestPipeline(scraper, &stubReconciler{}, &stubAssignmentRepo{}, logs, &stubDispatcher{})

	result := p.RunOnce(context.Background(), smartAccount())

	if result.Status != model.SyncStatusError {
		t.Fatalf("エラーが返されなかった: %+v", result)
	}
	var perr *model.PipelineError
	if !errors.As(result.Err, &perr) {
		t.Fatalf("PipelineErrorではない: %T", result.Err)
	}

	// エラーの同期履歴が残る
	if len(logs.records) != 1 || logs.records[0].Status != model.SyncStatusError {
		t.Errorf("エラー履歴が不正: %+v", logs.records)
	}
	if logs.records[0].ErrorMessage == "" {
		t.Error("エラーメッセージが記録されていない")
	}
}

func TestRunOnce_NotificationsDisabled(t *testing.T) {
	fresh := pendingAssignment("n1", 72*time.Hour)
	scraper := &stubScraper{snapshot: []model.ScrapedAssignment{{Title: "Devoir", Course: "Math"}}}
	reconciler := &stubReconciler{summary: &model.ChangeSummary{New: []model.Assignment{fresh}}}
	dispatcher := &stubDispatcher{}

	account := smartAccount()
	account.NotificationsEnabled = false

	p := newTestPipeline(scraper, reconciler, &stubAssignmentRepo{pending: []model.Assignment{fresh}}, &stubSyncLogRepo{}, dispatcher)
	result := p.RunOnce(context.Background(), account)

	if !result.Succeeded() {
		t.Fatalf("成功が返されなかった: %+v", result)
	}
	if len(dispatcher.dispatched) != 0 {
		t.Errorf("通知無効のアカウントで送信が行われた: %d", len(dispatcher.dispatched))
	}
}

func TestRunOnce_DispatchFailureDoesNotFailRun(t *testing.T) {
	fresh := pendingAssignment("n1", 72*time.Hour)
	scraper := &stubScraper{snapshot: []model.ScrapedAssignment{{Title: "Devoir", Course: "Math"}}}
	reconciler := &stubReconciler{summary: &model.ChangeSummary{New: []model.Assignment{fresh}}}
	repo := &stubAssignmentRepo{pending: []model.Assignment{fresh}}
	dispatcher := &stubDispatcher{err: errors.New("smtp down")}

	p := newTestPipeline(scraper, reconciler, repo, &stubSyncLogRepo{}, dispatcher)
	result := p.RunOnce(context.Background(), smartAccount())

	// 送信失敗は同期結果に影響しない
	if !result.Succeeded() {
		t.Fatalf("送信失敗で同期が失敗扱いになった: %+v", result)
	}
	// 送信されていないので通知記録も更新されない
	if len(repo.notified) != 0 {
		t.Errorf("送信失敗時に通知記録が更新された: %v", repo.notified)
	}
}

func TestRunOnce_LegacyModeUsesSeparateDispatch(t *testing.T) {
	fresh := pendingAssignment("n1", 72*time.Hour)
	scraper := &stubScraper{snapshot: []model.ScrapedAssignment{{Title: "Devoir", Course: "Math"}}}
	reconciler := &stubReconciler{summary: &model.ChangeSummary{New: []model.Assignment{fresh}}}
	dispatcher := &stubDispatcher{}

	account := smartAccount()
	account.UseSmartFusion = false

	p := newTestPipeline(scraper, reconciler, &stubAssignmentRepo{pending: []model.Assignment{fresh}}, &stubSyncLogRepo{}, dispatcher)
	p.RunOnce(context.Background(), account)

	if dispatcher.separate != 1 {
		t.Errorf("従来方式の送信が使われていない: %d", dispatcher.separate)
	}
}

func TestRunOnce_FeedAccountUsesFeedScraper(t *testing.T) {
	portal := &stubScraper{}
	feed := &stubScraper{snapshot: []model.ScrapedAssignment{{Title: "Devoir", Course: "Math"}}}
	reconciler := &stubReconciler{summary: &model.ChangeSummary{Updated: 1}}

	p := NewPipeline(portal, feed, reconciler, &stubAssignmentRepo{}, &stubSyncLogRepo{}, &stubDispatcher{}, &noopCollector{}, discardLogger())

	account := smartAccount()
	account.FeedURL = "https://portal.example.com/feed.rss"
	p.RunOnce(context.Background(), account)

	if feed.calls != 1 || portal.calls != 0 {
		t.Errorf("スクレイパーの選択が不正: feed=%d portal=%d", feed.calls, portal.calls)
	}
}
