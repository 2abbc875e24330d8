// Package handler はエージェントの稼働状況を公開するHTTPハンドラーを提供する。
// 同期結果と課題集計の読み取り専用エンドポイントのみで、書き込み系のAPIは持たない。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// defaultSyncListLimit は同期履歴一覧のデフォルト件数。
const defaultSyncListLimit = 20

// maxSyncListLimit は同期履歴一覧の最大件数。
const maxSyncListLimit = 100

// SyncHistoryLister は同期履歴の読み取りインターフェース。
type SyncHistoryLister interface {
	ListRecent(ctx context.Context, accountID string, limit int) ([]model.SyncRecord, error)
}

// StatisticsReader は課題集計の読み取りインターフェース。
type StatisticsReader interface {
	Statistics(ctx context.Context, accountID string) (*model.Statistics, error)
}

// DatabasePinger はヘルスチェック用のデータベース疎通確認インターフェース。
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

// StatusHandler はステータスエンドポイントのハンドラー群。
type StatusHandler struct {
	syncs    SyncHistoryLister
	stats    StatisticsReader
	db       DatabasePinger
	accounts map[string]struct{}
	logger   *slog.Logger
}

// NewStatusHandler はStatusHandlerを生成する。
// accountIDsに含まれないアカウントへのリクエストは404になる。
func NewStatusHandler(syncs SyncHistoryLister, stats StatisticsReader, db DatabasePinger, accountIDs []string, logger *slog.Logger) *StatusHandler {
	accounts := make(map[string]struct{}, len(accountIDs))
	for _, id := range accountIDs {
		accounts[id] = struct{}{}
	}
	return &StatusHandler{
		syncs:    syncs,
		stats:    stats,
		db:       db,
		accounts: accounts,
		logger:   logger,
	}
}

// healthResponse はGET /healthのレスポンス。
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health はデータベース疎通を含むヘルスチェックを返す。
// データベースに到達できない場合は503を返す。
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error("ヘルスチェックが失敗しました", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Database: "unreachable"})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "ok"})
}

// syncRecordResponse は同期履歴1件のレスポンス表現。
type syncRecordResponse struct {
	ID           string    `json:"id"`
	SyncTime     time.Time `json:"sync_time"`
	Status       string    `json:"status"`
	Found        int       `json:"assignments_found"`
	New          int       `json:"new_assignments"`
	Updated      int       `json:"updated_assignments"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// ListSyncs はGET /accounts/{accountID}/syncsを処理する。
// limitクエリパラメータで件数を指定できる（デフォルト20、最大100）。
func (h *StatusHandler) ListSyncs(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if _, ok := h.accounts[accountID]; !ok {
		writeError(w, http.StatusNotFound, "アカウントが見つかりません")
		return
	}

	limit := defaultSyncListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limitは1以上の整数を指定してください")
			return
		}
		limit = parsed
		if limit > maxSyncListLimit {
			limit = maxSyncListLimit
		}
	}

	records, err := h.syncs.ListRecent(r.Context(), accountID, limit)
	if err != nil {
		h.logger.Error("同期履歴の取得に失敗しました",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "内部エラーが発生しました")
		return
	}

	resp := make([]syncRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, syncRecordResponse{
			ID:           rec.ID,
			SyncTime:     rec.SyncTime,
			Status:       string(rec.Status),
			Found:        rec.Found,
			New:          rec.New,
			Updated:      rec.Updated,
			ErrorMessage: rec.ErrorMessage,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"syncs": resp})
}

// statisticsResponse は課題集計のレスポンス表現。
type statisticsResponse struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Pending        int     `json:"pending"`
	Urgent         int     `json:"urgent"`
	Overdue        int     `json:"overdue"`
	CompletionRate float64 `json:"completion_rate"`
}

// Stats はGET /accounts/{accountID}/statsを処理する。
func (h *StatusHandler) Stats(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if _, ok := h.accounts[accountID]; !ok {
		writeError(w, http.StatusNotFound, "アカウントが見つかりません")
		return
	}

	stats, err := h.stats.Statistics(r.Context(), accountID)
	if err != nil {
		h.logger.Error("課題集計の取得に失敗しました",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "内部エラーが発生しました")
		return
	}

	writeJSON(w, http.StatusOK, statisticsResponse{
		Total:          stats.Total,
		Completed:      stats.Completed,
		Pending:        stats.Pending,
		Urgent:         stats.Urgent,
		Overdue:        stats.Overdue,
		CompletionRate: stats.CompletionRate,
	})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeError はJSON形式のエラーレスポンスを書き込む。
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
