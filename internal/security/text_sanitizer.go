package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はスクレイピングで取得した文字列のサニタイズ機能の
// インターフェースを定義する。課題のタイトル・コース名・説明文の保存前に使用される。
type TextSanitizerService interface {
	// SanitizeText は入力から全てのHTMLタグを除去し、プレーンテキストを返す。
	// タグ除去後にHTMLエンティティをデコードし、連続する空白を1つに畳み込む。
	// 戻り値はプレーンテキストとして扱うこと。メール本文への埋め込みは
	// html/template側のエスケープに委ねる。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// ポータルのDOMから抽出した文字列には埋め込みタグやスクリプト断片が
// 混入しうるため、許可タグなしのStrictPolicyで全タグを除去する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力から全てのHTMLタグを除去し、プレーンテキストを返す。
func (s *textSanitizer) SanitizeText(raw string) string {
	stripped := s.policy.Sanitize(raw)
	// StrictPolicyは残存テキストをエスケープするため、表示用にデコードし直す
	decoded := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(decoded), " ")
}
