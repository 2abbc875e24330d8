// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrEmptySnapshot は例外なしで課題が0件だったことを示す。
// ハードエラーではなくリトライ対象として扱う。
var ErrEmptySnapshot = errors.New("課題が0件でした")

// ErrMalformedRecord はスクレイプした1レコードのパース失敗を示す。
// そのレコードのみをスナップショットから除外し、残りは処理を続行する。
var ErrMalformedRecord = errors.New("課題レコードのパースに失敗しました")

// PipelineError は1アカウントのスクレイプ/ログイン/パース中の失敗を表す。
// リトライ対象であり、メッセージは最終レポートに保持される。
type PipelineError struct {
	AccountName string
	Err         error
}

// Error はerrorインターフェースを実装する。
func (e *PipelineError) Error() string {
	return fmt.Sprintf("アカウント %s のパイプラインが失敗しました: %v", e.AccountName, e.Err)
}

// Unwrap はラップされた元エラーを返す。
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// RetriesExhaustedError はリトライ回数を使い切った終端結果を表す。
// 他アカウントの処理には影響しない。
type RetriesExhaustedError struct {
	AccountName string
	Attempts    int
	LastErr     error
}

// Error はerrorインターフェースを実装する。
func (e *RetriesExhaustedError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("アカウント %s は%d回の試行後も失敗しました: %v", e.AccountName, e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("アカウント %s は%d回の試行後も課題が見つかりませんでした", e.AccountName, e.Attempts)
}

// Unwrap は最終試行のエラーを返す。
func (e *RetriesExhaustedError) Unwrap() error {
	return e.LastErr
}

// DispatchError は通知送信の失敗を表す。
// ログに記録し表面化させるが、照合状態のロールバックもスクレイプの再実行も行わない。
type DispatchError struct {
	Case NotificationCase
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *DispatchError) Error() string {
	return fmt.Sprintf("通知送信に失敗しました (case=%s): %v", e.Case, e.Err)
}

// Unwrap はラップされた元エラーを返す。
func (e *DispatchError) Unwrap() error {
	return e.Err
}
