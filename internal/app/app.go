// Package app はサブコマンド解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Michael-bot-commits/brightspace-agent/internal/config"
	"github.com/Michael-bot-commits/brightspace-agent/internal/database"
	"github.com/Michael-bot-commits/brightspace-agent/internal/handler"
	"github.com/Michael-bot-commits/brightspace-agent/internal/logger"
	"github.com/Michael-bot-commits/brightspace-agent/internal/metrics"
	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
	"github.com/Michael-bot-commits/brightspace-agent/internal/notify"
	"github.com/Michael-bot-commits/brightspace-agent/internal/reconcile"
	"github.com/Michael-bot-commits/brightspace-agent/internal/repository"
	"github.com/Michael-bot-commits/brightspace-agent/internal/scrape"
	"github.com/Michael-bot-commits/brightspace-agent/internal/security"
	"github.com/Michael-bot-commits/brightspace-agent/internal/session"
	syncworker "github.com/Michael-bot-commits/brightspace-agent/internal/worker/sync"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.Int("accounts", len(cfg.Accounts)),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runSync(cfg)
	}
}

// agent はワイヤリング済みの同期コンポーネント一式。
type agent struct {
	assignments *repository.PostgresAssignmentRepo
	syncLogs    *repository.PostgresSyncLogRepo
	registry    *prometheus.Registry
	runner      *syncworker.Runner
	prune       *syncworker.PruneJob
}

// buildAgent は同期パイプラインの全依存関係をワイヤリングする。
func buildAgent(cfg *config.Config, db *sql.DB) (*agent, error) {
	log := slog.Default()

	// リポジトリ
	assignmentRepo := repository.NewPostgresAssignmentRepo(db)
	syncLogRepo := repository.NewPostgresSyncLogRepo(db)

	// セキュリティサービス
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// セッションストア
	sessions, err := session.NewEncryptedFileStore(cfg.DataDir, cfg.SessionKeyFile, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	// スクレイパー
	portal, err := scrape.NewPortalScraper(cfg, ssrfGuard, sanitizer, sessions, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create portal scraper: %w", err)
	}
	feed := scrape.NewFeedScraper(cfg, ssrfGuard, sanitizer, log)

	// 照合・通知
	reconciler := reconcile.NewReconciler(assignmentRepo, syncLogRepo, log)
	dispatcher := notify.NewEmailDispatcher(cfg, log)

	// メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// パイプラインと実行制御
	pipeline := syncworker.NewPipeline(
		portal, feed, reconciler, assignmentRepo, syncLogRepo,
		dispatcher, collector, log,
	)
	orchestrator := syncworker.NewOrchestrator(pipeline, sessions, collector, log, cfg.MaxAttempts)
	runner := syncworker.NewRunner(orchestrator, cfg.Accounts, log)
	prune := syncworker.NewPruneJob(syncLogRepo, log, cfg.SyncLogRetentionDays)

	return &agent{
		assignments: assignmentRepo,
		syncLogs:    syncLogRepo,
		registry:    registry,
		runner:      runner,
		prune:       prune,
	}, nil
}

// openDatabase はDB接続を開いて疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// runSync は全アカウントの同期を1回実行して終了する。
// cronやsystemdタイマーからの定期実行を想定している。
// SIGINTまたはSIGTERMで残りのアカウントをスキップして終了する。
func runSync(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ag, err := buildAgent(cfg, db)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report := ag.runner.RunAll(ctx)

	// 同期履歴の保持期間超過分を削除。失敗しても同期結果には影響しない。
	if err := ag.prune.Run(ctx); err != nil {
		slog.Error("sync history prune failed", slog.String("error", err.Error()))
	}

	// 全アカウントがエラーの場合のみ終了コードで失敗を伝える。
	// 課題0件はエラーではない。
	if allFailed(report.Results) {
		return fmt.Errorf("all %d accounts failed to sync", len(report.Results))
	}
	return nil
}

// runServe はステータスサーバーと定期同期ループを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ag, err := buildAgent(cfg, db)
	if err != nil {
		return err
	}

	accountIDs := make([]string, 0, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		accountIDs = append(accountIDs, a.ID)
	}

	router := handler.NewRouter(&handler.RouterDeps{
		SyncHistory: ag.syncLogs,
		Statistics:  ag.assignments,
		Database:    db,
		AccountIDs:  accountIDs,
		Metrics:     metrics.Handler(ag.registry),
		Logger:      slog.Default(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("status server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	// 定期同期ループ。起動直後に1回実行し、以後はSyncIntervalごとに実行する。
	go func() {
		runCycle := func() {
			ag.runner.RunAll(ctx)
			if err := ag.prune.Run(ctx); err != nil {
				slog.Error("sync history prune failed", slog.String("error", err.Error()))
			}
		}

		runCycle()

		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runCycle()
			}
		}
	}()

	slog.Info("sync loop started", slog.Duration("interval", cfg.SyncInterval))

	<-stop
	slog.Info("shutting down status server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("status server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// allFailed は全アカウントの同期がエラーで終わったかを判定する。
func allFailed(results []model.RunResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Err == nil {
			return false
		}
	}
	return true
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
