// Package scrape はポータルから課題スナップショットを取得する機能を提供する。
package scrape

import (
	"context"

	"github.com/Michael-bot-commits/brightspace-agent/internal/config"
	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// Scraper は1アカウント分の課題スナップショットを取得するインターフェースを定義する。
// 実装はポータルのHTML取得とフィード取得の2種類がある。
type Scraper interface {
	// Scrape はアカウントの全コースから課題を抽出して返す。
	// 取得自体の失敗はエラーを返す。個々のレコードのパース失敗は
	// そのレコードのみをスキップし、残りを返す。
	Scrape(ctx context.Context, account config.AccountConfig) ([]model.ScrapedAssignment, error)
}
