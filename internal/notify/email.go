package notify

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/Michael-bot-commits/brightspace-agent/internal/config"
	"github.com/Michael-bot-commits/brightspace-agent/internal/model"
)

// sendFunc はSMTP送信処理。テストで差し替えるために関数型にしている。
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailDispatcher はSMTP経由でHTMLメールを送信するDispatcherの実装。
type EmailDispatcher struct {
	sender   string
	password string
	host     string
	port     int
	logger   *slog.Logger
	send     sendFunc
	now      func() time.Time
}

// NewEmailDispatcher はEmailDispatcherを生成する。
func NewEmailDispatcher(cfg *config.Config, logger *slog.Logger) *EmailDispatcher {
	return &EmailDispatcher{
		sender:   cfg.EmailSender,
		password: cfg.EmailPassword,
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		logger:   logger,
		send:     smtp.SendMail,
		now:      time.Now,
	}
}

// Dispatch は判定結果を1通のメールとして送信する。
func (e *EmailDispatcher) Dispatch(ctx context.Context, account config.AccountConfig, d model.Decision) error {
	if d.Case == model.CaseNone {
		return nil
	}

	body, err := Render(d, e.now())
	if err != nil {
		return &model.DispatchError{Case: d.Case, Err: err}
	}

	if err := e.sendEmail(account.EmailRecipient, Subject(d), body); err != nil {
		return &model.DispatchError{Case: d.Case, Err: err}
	}

	e.logger.Info("通知メールを送信しました",
		slog.String("account", account.Name),
		slog.String("case", string(d.Case)),
		slog.String("to", account.EmailRecipient))
	return nil
}

// DispatchSeparate は新規・緊急・サマリーをそれぞれ個別のメールで送信する。
// 統合通知を導入する前の送信方式で、1回の同期で最大3通のメールになる。
// いずれかの送信に失敗しても残りの送信は試みる。
func (e *EmailDispatcher) DispatchSeparate(ctx context.Context, account config.AccountConfig, d model.Decision) error {
	var firstErr error

	if len(d.New) > 0 {
		sub := Decide(d.AccountName, d.New, nil, d.AllPending, model.TimeOfDayNone)
		if err := e.Dispatch(ctx, account, sub); err != nil {
			firstErr = err
			e.logger.Error("新規通知の送信に失敗しました", slog.String("error", err.Error()))
		}
	}

	if len(d.Urgent) > 0 {
		sub := Decide(d.AccountName, nil, d.Urgent, d.AllPending, model.TimeOfDayNone)
		if err := e.Dispatch(ctx, account, sub); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			e.logger.Error("緊急通知の送信に失敗しました", slog.String("error", err.Error()))
		}
	}

	if d.TimeOfDay != model.TimeOfDayNone {
		sub := Decide(d.AccountName, nil, nil, d.AllPending, d.TimeOfDay)
		if err := e.Dispatch(ctx, account, sub); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			e.logger.Error("サマリー通知の送信に失敗しました", slog.String("error", err.Error()))
		}
	}

	return firstErr
}

// sendEmail は1通のHTMLメールを組み立てて送信する。
func (e *EmailDispatcher) sendEmail(to, subject, htmlBody string) error {
	if e.sender == "" || to == "" {
		return fmt.Errorf("送信元または宛先が設定されていません")
	}

	// 件名に絵文字を含むためRFC 2047でエンコードする
	encodedSubject := mime.QEncoding.Encode("UTF-8", subject)

	var msg strings.Builder
	msg.WriteString("From: " + e.sender + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + encodedSubject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	auth := smtp.PlainAuth("", e.sender, e.password, e.host)

	if err := e.send(addr, auth, e.sender, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("メールの送信に失敗しました: %w", err)
	}
	return nil
}
