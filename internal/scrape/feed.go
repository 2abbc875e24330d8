package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/Michael-bot-commits/brightspace-agent/internal/config"
	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
	"github.com/Michael-bot-commits/brightspace-agent/internal/security"
)

// FeedScraper はポータルが公開する課題フィード（RSS/Atom）から
// スナップショットを取得するScraperの実装。
// ポータルによってはカレンダー配信やお知らせ配信として課題が
// フィード形式で取得でき、HTMLスクレイピングより安定している。
// AccountConfig.FeedURLが設定されたアカウントで使用する。
type FeedScraper struct {
	guard     security.SSRFGuardService
	sanitizer security.TextSanitizerService
	parser    *gofeed.Parser
	timeout   time.Duration
	maxSize   int64
	logger    *slog.Logger
}

// NewFeedScraper はFeedScraperを生成する。
func NewFeedScraper(
	cfg *config.Config,
	guard security.SSRFGuardService,
	sanitizer security.TextSanitizerService,
	logger *slog.Logger,
) *FeedScraper {
	return &FeedScraper{
		guard:     guard,
		sanitizer: sanitizer,
		parser:    gofeed.NewParser(),
		timeout:   cfg.ScrapeTimeout,
		maxSize:   cfg.ScrapeMaxSize,
		logger:    logger,
	}
}

// Scrape は課題フィードを取得してパースする。
// フィードエントリのタイトルが課題名、カテゴリがコース名に対応する。
// 締切はエントリ本文の "Échéance" 表記から抽出する。
func (f *FeedScraper) Scrape(ctx context.Context, account config.AccountConfig) ([]model.ScrapedAssignment, error) {
	if account.FeedURL == "" {
		return nil, fmt.Errorf("フィードURLが設定されていません: account=%s", account.Name)
	}
	if err := f.guard.ValidateURL(account.FeedURL); err != nil {
		return nil, fmt.Errorf("フィードURLの検証に失敗しました: %w", err)
	}

	client := f.guard.NewSafeClient(f.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, account.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("フィードの取得に失敗しました: ステータスコード %d", resp.StatusCode)
	}

	feed, err := f.parser.Parse(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	var assignments []model.ScrapedAssignment
	for _, item := range feed.Items {
		a, err := f.itemToAssignment(item, feed.Title)
		if err != nil {
			f.logger.Warn("フィードエントリのパースに失敗しました",
				slog.String("title", item.Title),
				slog.String("error", err.Error()))
			continue
		}
		assignments = append(assignments, *a)
	}

	f.logger.Info("フィードの取得が完了しました",
		slog.String("account", account.Name),
		slog.Int("assignments", len(assignments)))
	return assignments, nil
}

// itemToAssignment はフィードエントリ1件をScrapedAssignmentに変換する。
func (f *FeedScraper) itemToAssignment(item *gofeed.Item, feedTitle string) (*model.ScrapedAssignment, error) {
	title := f.sanitizer.SanitizeText(item.Title)
	if len(title) < 2 {
		return nil, fmt.Errorf("タイトルが空です: %w", model.ErrMalformedRecord)
	}

	course := feedTitle
	if len(item.Categories) > 0 {
		course = item.Categories[0]
	}

	a := &model.ScrapedAssignment{
		Title:       title,
		Course:      f.sanitizer.SanitizeText(course),
		Link:        item.Link,
		Description: f.sanitizer.SanitizeText(item.Description),
	}

	// 本文中の締切表記を優先し、なければエントリ自体の日付を使う
	body := item.Title + " " + item.Description
	if m := duePattern.FindStringSubmatch(body); m != nil {
		if due, err := ParseDueDate(m[1]); err == nil {
			a.DueDate = &due
		}
	} else if m := availableUntilPattern.FindStringSubmatch(body); m != nil {
		a.NonResubmittable = true
		if due, err := ParseDueDate(m[1]); err == nil {
			a.DueDate = &due
		}
	}

	a.Submitted = strings.Contains(strings.ToLower(body), "soumission")
	if m := gradePattern.FindStringSubmatch(body); m != nil {
		if score, err := strconv.ParseFloat(m[1], 64); err == nil {
			a.Grade = &score
		}
	}

	return a, nil
}
