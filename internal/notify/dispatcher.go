package notify

import (
	"context"

	"github.com/Michael-bot-commits/brightspace-agent/internal/config"
	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// Dispatcher は通知判定の結果をメッセージとして送信するインターフェースを定義する。
// 判定エンジンは送信手段に依存せず、Decisionペイロードだけを渡す。
type Dispatcher interface {
	// Dispatch は判定結果を1通のメッセージとして送信する。
	// CaseNoneの場合は何も送信しない。
	Dispatch(ctx context.Context, account config.AccountConfig, d model.Decision) error

	// DispatchSeparate は判定結果を従来方式の個別メッセージとして送信する。
	// 新規・緊急・サマリーをそれぞれ別のメッセージで送る。
	// UseSmartFusionが無効のアカウントで使用する。
	DispatchSeparate(ctx context.Context, account config.AccountConfig, d model.Decision) error
}
