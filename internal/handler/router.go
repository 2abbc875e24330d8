package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Michael-bot-commits/brightspace-agent/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	SyncHistory SyncHistoryLister
	Statistics  StatisticsReader
	Database    DatabasePinger
	AccountIDs  []string
	Metrics     http.Handler
	Logger      *slog.Logger
}

// NewRouter はステータスサーバーのルーティングとミドルウェアチェーンを
// 構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	h := NewStatusHandler(deps.SyncHistory, deps.Statistics, deps.Database, deps.AccountIDs, deps.Logger)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", deps.Metrics)

	r.Route("/accounts/{accountID}", func(r chi.Router) {
		r.Get("/syncs", h.ListSyncs)
		r.Get("/stats", h.Stats)
	})

	return r
}
