package session

import (
	"context"
	"fmt"
	"net/http"
)

// Prober は保存済みセッションがまだポータルで有効かを検証するインターフェースを定義する。
type Prober interface {
	// Probe はCookieを付与してポータルのホームページにアクセスし、
	// セッションの有効性を判定する。
	// 200/304はログイン済み、302/303/307はログインページへの
	// リダイレクト（＝セッション失効）とみなす。
	Probe(ctx context.Context, homeURL string, cookies []*http.Cookie) (bool, error)
}

// httpProber はHTTPリクエストによるProberの実装。
// リダイレクトを追跡しないクライアントを使用する。ステータスコード自体が
// 判定材料であるため、リダイレクト先まで追跡すると失効を検出できない。
type httpProber struct {
	client *http.Client
}

// NewHTTPProber はhttpProberを生成する。
// clientはSSRF防止機能付きのものを渡すこと。リダイレクト追跡は
// この関数内で無効化される。
func NewHTTPProber(client *http.Client) *httpProber {
	probeClient := *client
	probeClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &httpProber{client: &probeClient}
}

// Probe はCookieを付与してポータルのホームページにアクセスし、有効性を判定する。
func (p *httpProber) Probe(ctx context.Context, homeURL string, cookies []*http.Cookie) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, homeURL, nil)
	if err != nil {
		return false, fmt.Errorf("検証リクエストの作成に失敗しました: %w", err)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("セッション検証リクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotModified:
		return true, nil
	case http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect:
		return false, nil
	default:
		return false, fmt.Errorf("セッション検証で想定外のステータスコード: %d", resp.StatusCode)
	}
}
