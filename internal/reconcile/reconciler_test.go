package reconcile

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// mockAssignmentRepo はテスト用のインメモリAssignmentRepository実装。
type mockAssignmentRepo struct {
	records map[string]model.Assignment
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{records: make(map[string]model.Assignment)}
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, accountID, id string) (*model.Assignment, error) {
	if a, ok := m.records[id]; ok && a.AccountID == accountID {
		return &a, nil
	}
	return nil, nil
}

func (m *mockAssignmentRepo) ListAll(ctx context.Context, accountID string) ([]model.Assignment, error) {
	var out []model.Assignment
	for _, a := range m.records {
		if a.AccountID == accountID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockAssignmentRepo) ListPending(ctx context.Context, accountID string) ([]model.Assignment, error) {
	var out []model.Assignment
	for _, a := range m.records {
		if a.AccountID == accountID && !a.IsCompleted {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockAssignmentRepo) Upsert(ctx context.Context, a *model.Assignment) (bool, error) {
	_, exists := m.records[a.ID]
	m.records[a.ID] = *a
	return !exists, nil
}

func (m *mockAssignmentRepo) Retire(ctx context.Context, accountID, id string) error {
	delete(m.records, id)
	return nil
}

func (m *mockAssignmentRepo) MarkNotified(ctx context.Context, accountID, id string) error {
	if a, ok := m.records[id]; ok {
		now := time.Now()
		a.LastNotified = &now
		a.NotificationCount++
		m.records[id] = a
	}
	return nil
}

func (m *mockAssignmentRepo) Statistics(ctx context.Context, accountID string) (*model.Statistics, error) {
	return &model.Statistics{}, nil
}

// mockSyncLogRepo はテスト用のインメモリSyncLogRepository実装。
type mockSyncLogRepo struct {
	records []model.SyncRecord
}

func (m *mockSyncLogRepo) Append(ctx context.Context, rec *model.SyncRecord) error {
	m.records = append(m.records, *rec)
	return nil
}

func (m *mockSyncLogRepo) ListRecent(ctx context.Context, accountID string, limit int) ([]model.SyncRecord, error) {
	return m.records, nil
}

func (m *mockSyncLogRepo) PruneOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	return 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestReconciler(assignments *mockAssignmentRepo, syncLogs *mockSyncLogRepo) *Reconciler {
	return NewReconciler(assignments, syncLogs, testLogger())
}

func futureDate(hours int) *time.Time {
	t := time.Now().Add(time.Duration(hours) * time.Hour)
	return &t
}

func TestReconcile_NewAssignments(t *testing.T) {
	repo := newMockAssignmentRepo()
	logs := &mockSyncLogRepo{}
	r := newTestReconciler(repo, logs)

	snapshot := []model.ScrapedAssignment{
		{Title: "Devoir 1", Course: "Math", DueDate: futureDate(48)},
		{Title: "Devoir 2", Course: "Math", DueDate: futureDate(72)},
	}

	summary, err := r.Reconcile(context.Background(), "acc1", snapshot)
	if err != nil {
		t.Fatalf("Reconcileに失敗: %v", err)
	}

	if len(summary.New) != 2 || summary.Updated != 0 || summary.Retired != 0 {
		t.Errorf("サマリーが不正: new=%d updated=%d retired=%d", len(summary.New), summary.Updated, summary.Retired)
	}
	// 新規リストはIDだけでなく完全なレコードを含むこと
	if summary.New[0].Title == "" || summary.New[0].ID == "" {
		t.Errorf("新規レコードが不完全: %+v", summary.New[0])
	}
	if len(logs.records) != 1 || logs.records[0].Status != model.SyncStatusSuccess {
		t.Errorf("同期履歴が不正: %+v", logs.records)
	}
	if logs.records[0].Found != 2 || logs.records[0].New != 2 {
		t.Errorf("同期履歴のカウントが不正: %+v", logs.records[0])
	}
}

func TestReconcile_Idempotence(t *testing.T) {
	repo := newMockAssignmentRepo()
	r := newTestReconciler(repo, &mockSyncLogRepo{})

	snapshot := []model.ScrapedAssignment{
		{Title: "Devoir 1", Course: "Math", DueDate: futureDate(48)},
	}

	first, err := r.Reconcile(context.Background(), "acc1", snapshot)
	if err != nil {
		t.Fatalf("1回目のReconcileに失敗: %v", err)
	}
	if len(first.New) != 1 {
		t.Fatalf("1回目のnewが不正: %d", len(first.New))
	}

	second, err := r.Reconcile(context.Background(), "acc1", snapshot)
	if err != nil {
		t.Fatalf("2回目のReconcileに失敗: %v", err)
	}
	if len(second.New) != 0 || second.Updated != 1 {
		t.Errorf("2回目のサマリーが不正: new=%d updated=%d", len(second.New), second.Updated)
	}
	if len(repo.records) != 1 {
		t.Errorf("レコード数が変化した: %d", len(repo.records))
	}
}

func TestReconcile_ConservativeRetirement(t *testing.T) {
	// 未完了の保存済みレコードはスナップショットに無くても保持される
	repo := newMockAssignmentRepo()
	repo.records["x"] = model.Assignment{ID: "x", AccountID: "acc1", Title: "Disparu", IsCompleted: false}
	r := newTestReconciler(repo, &mockSyncLogRepo{})

	snapshot := []model.ScrapedAssignment{
		{Title: "Autre devoir", Course: "Math", DueDate: futureDate(48)},
	}

	summary, err := r.Reconcile(context.Background(), "acc1", snapshot)
	if err != nil {
		t.Fatalf("Reconcileに失敗: %v", err)
	}
	if summary.Retired != 0 {
		t.Errorf("未完了レコードが削除された: retired=%d", summary.Retired)
	}
	if _, kept := repo.records["x"]; !kept {
		t.Error("未完了の保存済みレコードが消えた")
	}
}

func TestReconcile_SafeRetirement(t *testing.T) {
	// 完了済みの保存済みレコードはスナップショットに無ければ削除される
	repo := newMockAssignmentRepo()
	repo.records["y"] = model.Assignment{ID: "y", AccountID: "acc1", Title: "Terminé", IsCompleted: true}
	r := newTestReconciler(repo, &mockSyncLogRepo{})

	snapshot := []model.ScrapedAssignment{
		{Title: "Autre devoir", Course: "Math", DueDate: futureDate(48)},
	}

	summary, err := r.Reconcile(context.Background(), "acc1", snapshot)
	if err != nil {
		t.Fatalf("Reconcileに失敗: %v", err)
	}
	if summary.Retired != 1 {
		t.Errorf("完了済みレコードが削除されていない: retired=%d", summary.Retired)
	}
	if _, kept := repo.records["y"]; kept {
		t.Error("完了済みの保存済みレコードが残っている")
	}
}

func TestReconcile_EmptySnapshot(t *testing.T) {
	repo := newMockAssignmentRepo()
	repo.records["z"] = model.Assignment{ID: "z", AccountID: "acc1", IsCompleted: true}
	logs := &mockSyncLogRepo{}
	r := newTestReconciler(repo, logs)

	summary, err := r.Reconcile(context.Background(), "acc1", nil)
	if err != nil {
		t.Fatalf("空スナップショットでエラー: %v", err)
	}
	if len(summary.New) != 0 || summary.Updated != 0 || summary.Retired != 0 {
		t.Errorf("空スナップショットのサマリーが不正: %+v", summary)
	}
	// 空スナップショットでは削除処理を行わない
	if _, kept := repo.records["z"]; !kept {
		t.Error("空スナップショットで保存済みレコードが削除された")
	}
	if len(logs.records) != 1 || logs.records[0].Found != 0 {
		t.Errorf("同期履歴が不正: %+v", logs.records)
	}
}

func TestReconcile_CompletedItemsNotPersisted(t *testing.T) {
	repo := newMockAssignmentRepo()
	r := newTestReconciler(repo, &mockSyncLogRepo{})
	grade := 15.0

	snapshot := []model.ScrapedAssignment{
		{Title: "Devoir noté", Course: "Math", Grade: &grade},
		{Title: "Devoir soumis", Course: "Math", Submitted: true},
		{Title: "Devoir en cours", Course: "Math", DueDate: futureDate(48)},
	}

	summary, err := r.Reconcile(context.Background(), "acc1", snapshot)
	if err != nil {
		t.Fatalf("Reconcileに失敗: %v", err)
	}
	if len(summary.New) != 1 {
		t.Errorf("完了済み課題が永続化された: new=%d", len(summary.New))
	}
	if len(repo.records) != 1 {
		t.Errorf("レコード数が不正: %d", len(repo.records))
	}
}

func TestReconcile_OverdueIsPersisted(t *testing.T) {
	repo := newMockAssignmentRepo()
	r := newTestReconciler(repo, &mockSyncLogRepo{})
	past := time.Now().Add(-24 * time.Hour)

	snapshot := []model.ScrapedAssignment{
		{Title: "Devoir en retard", Course: "Math", DueDate: &past},
	}

	summary, err := r.Reconcile(context.Background(), "acc1", snapshot)
	if err != nil {
		t.Fatalf("Reconcileに失敗: %v", err)
	}
	if len(summary.New) != 1 {
		t.Fatalf("overdueの課題が永続化されていない: new=%d", len(summary.New))
	}
	if summary.New[0].Status != model.StatusOverdue {
		t.Errorf("ステータスが不正: %v", summary.New[0].Status)
	}
}
