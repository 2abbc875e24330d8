package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/Michael-bot-commits/brightspace-agent/internal/config"
	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
	"github.com/Michael-bot-commits/brightspace-agent/internal/security"
	"github.com/Michael-bot-commits/brightspace-agent/internal/session"
)

// PortalScraper はポータルのHTMLページから課題を抽出するScraperの実装。
//
// 取得の流れ:
//  1. 保存済みセッションを復元し、有効性を検証する（失効時は再ログイン）
//  2. ホームページからコース一覧を抽出する
//  3. コースごとに課題一覧ページを取得し、テーブル行をパースする
//
// 全リクエストはSSRF防止クライアントとレートリミッターを経由する。
type PortalScraper struct {
	client    *http.Client
	limiter   *rate.Limiter
	sanitizer security.TextSanitizerService
	sessions  session.Store
	prober    session.Prober
	homeURL   string
	loginURL  string
	maxSize   int64
	logger    *slog.Logger
}

// NewPortalScraper はPortalScraperを生成する。
func NewPortalScraper(
	cfg *config.Config,
	guard security.SSRFGuardService,
	sanitizer security.TextSanitizerService,
	sessions session.Store,
	logger *slog.Logger,
) (*PortalScraper, error) {
	if err := guard.ValidateURL(cfg.PortalHomeURL); err != nil {
		return nil, fmt.Errorf("ポータルURLの検証に失敗しました: %w", err)
	}
	if err := guard.ValidateURL(cfg.PortalLoginURL); err != nil {
		return nil, fmt.Errorf("ログインURLの検証に失敗しました: %w", err)
	}

	client := guard.NewSafeClient(cfg.ScrapeTimeout)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("Cookie jarの生成に失敗しました: %w", err)
	}
	client.Jar = jar

	return &PortalScraper{
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(cfg.ScrapeRateLimit), 1),
		sanitizer: sanitizer,
		sessions:  sessions,
		prober:    session.NewHTTPProber(client),
		homeURL:   cfg.PortalHomeURL,
		loginURL:  cfg.PortalLoginURL,
		maxSize:   cfg.ScrapeMaxSize,
		logger:    logger,
	}, nil
}

// course はホームページから抽出したコース情報。
type course struct {
	id   string
	name string
}

// Scrape はアカウントの全コースから課題を抽出して返す。
func (s *PortalScraper) Scrape(ctx context.Context, account config.AccountConfig) ([]model.ScrapedAssignment, error) {
	cookies, err := s.ensureSession(ctx, account)
	if err != nil {
		return nil, err
	}

	home, err := s.fetch(ctx, s.homeURL, cookies)
	if err != nil {
		return nil, fmt.Errorf("ホームページの取得に失敗しました: %w", err)
	}

	courses, err := parseCourses(strings.NewReader(home))
	if err != nil {
		return nil, fmt.Errorf("コース一覧のパースに失敗しました: %w", err)
	}
	if len(courses) == 0 {
		s.logger.Warn("コースが見つかりませんでした", slog.String("account", account.Name))
		return nil, nil
	}
	s.logger.Info("コース一覧を取得しました",
		slog.String("account", account.Name),
		slog.Int("courses", len(courses)))

	var all []model.ScrapedAssignment
	for _, c := range courses {
		rows, err := s.fetchAssignmentRows(ctx, c, cookies)
		if err != nil {
			// 1コースの失敗で全体は中断しない
			s.logger.Warn("コースの課題取得に失敗しました",
				slog.String("course", c.name),
				slog.String("error", err.Error()))
			continue
		}

		pageURL := s.assignmentsURL(c)
		courseName := s.sanitizer.SanitizeText(c.name)
		for _, row := range rows {
			a, err := ParseRow(row, courseName, pageURL)
			if err != nil {
				if !errors.Is(err, model.ErrMalformedRecord) {
					s.logger.Warn("課題行のパースに失敗しました", slog.String("error", err.Error()))
				}
				continue
			}
			a.Title = s.sanitizer.SanitizeText(a.Title)
			all = append(all, *a)
		}
	}

	s.logger.Info("スクレイピングが完了しました",
		slog.String("account", account.Name),
		slog.Int("assignments", len(all)))
	return all, nil
}

// ensureSession は有効なセッションCookieを返す。
// 保存済みセッションが有効ならそれを使い、失効していれば再ログインする。
func (s *PortalScraper) ensureSession(ctx context.Context, account config.AccountConfig) ([]*http.Cookie, error) {
	cookies, err := s.sessions.Load(account.ID)
	if err != nil {
		return nil, err
	}

	if cookies != nil {
		valid, err := s.prober.Probe(ctx, s.homeURL, cookies)
		if err != nil {
			s.logger.Warn("セッション検証に失敗しました", slog.String("error", err.Error()))
		} else if valid {
			s.logger.Debug("保存済みセッションを再利用します", slog.String("account", account.Name))
			return cookies, nil
		}
		// 失効したセッションは破棄してログインし直す
		if err := s.sessions.Drop(account.ID); err != nil {
			s.logger.Warn("失効セッションの破棄に失敗しました", slog.String("error", err.Error()))
		}
	}

	return s.login(ctx, account)
}

// login はポータルにログインし、取得したセッションCookieを保存して返す。
func (s *PortalScraper) login(ctx context.Context, account config.AccountConfig) ([]*http.Cookie, error) {
	s.logger.Info("ポータルにログインします", slog.String("account", account.Name))

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("d2l_username", account.PortalUsername)
	form.Set("d2l_password", account.PortalPassword)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("ログインリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ログインリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, s.maxSize))

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ログインに失敗しました: ステータスコード %d", resp.StatusCode)
	}

	homeURL, err := url.Parse(s.homeURL)
	if err != nil {
		return nil, fmt.Errorf("ホームURLのパースに失敗しました: %w", err)
	}
	cookies := s.client.Jar.Cookies(homeURL)
	if len(cookies) == 0 {
		return nil, fmt.Errorf("ログイン後にセッションCookieが取得できませんでした")
	}

	valid, err := s.prober.Probe(ctx, s.homeURL, cookies)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, fmt.Errorf("ログイン後のセッション検証に失敗しました（認証情報を確認してください）")
	}

	if err := s.sessions.Save(account.ID, cookies); err != nil {
		// 保存失敗は今回の実行を妨げない
		s.logger.Warn("セッションの保存に失敗しました", slog.String("error", err.Error()))
	}
	return cookies, nil
}

// fetchAssignmentRows はコースの課題一覧ページを取得し、テーブル行のテキストを返す。
func (s *PortalScraper) fetchAssignmentRows(ctx context.Context, c course, cookies []*http.Cookie) ([]string, error) {
	body, err := s.fetch(ctx, s.assignmentsURL(c), cookies)
	if err != nil {
		return nil, err
	}
	return parseTableRows(strings.NewReader(body))
}

// assignmentsURL はコースの課題一覧ページのURLを組み立てる。
func (s *PortalScraper) assignmentsURL(c course) string {
	base, err := url.Parse(s.homeURL)
	if err != nil {
		return ""
	}
	base.Path = "/d2l/lms/dropbox/user/folders_list.d2l"
	base.RawQuery = url.Values{"ou": {c.id}}.Encode()
	return base.String()
}

// fetch はレート制限を守りつつ1ページを取得する。
func (s *PortalScraper) fetch(ctx context.Context, pageURL string, cookies []*http.Cookie) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ページの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ページの取得に失敗しました: ステータスコード %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize))
	if err != nil {
		return "", fmt.Errorf("レスポンスの読み込みに失敗しました: %w", err)
	}
	return string(body), nil
}

// parseCourses はホームページのHTMLからコース一覧を抽出する。
// コースへのリンクは /d2l/home/<コースID> 形式のhref属性を持つ。
func parseCourses(r io.Reader) ([]course, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var courses []course

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attrValue(n, "href")
			if id, ok := courseIDFromHref(href); ok {
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					name := strings.TrimSpace(nodeText(n))
					if name == "" {
						name = "Cours " + id
					}
					courses = append(courses, course{id: id, name: name})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return courses, nil
}

// courseIDFromHref は /d2l/home/<コースID> 形式のhrefからコースIDを取り出す。
func courseIDFromHref(href string) (string, bool) {
	const prefix = "/d2l/home/"
	if !strings.HasPrefix(href, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(href, prefix)
	if i := strings.IndexAny(id, "/?#"); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return "", false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return id, true
}

// parseTableRows は課題テーブルの各行のテキストを抽出する。
// 課題行は先頭セルが th のtr要素として描画される。
func parseTableRows(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var rows []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" && hasHeaderCell(n) {
			text := strings.Join(strings.Fields(nodeText(n)), " ")
			if text != "" {
				rows = append(rows, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return rows, nil
}

// hasHeaderCell はtr要素の最初の要素子がthかを判定する。
func hasHeaderCell(tr *html.Node) bool {
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c.Data == "th"
		}
	}
	return false
}

// attrValue はノードの属性値を返す。属性がない場合は空文字列。
func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText はノード配下の全テキストを空白区切りで連結して返す。
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
