package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/fastrack/internal/model"
)

// LogSender はリマインダーを構造化ログとして出力する。
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender はLogSenderを生成する。
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send はリマインダーの内容をINFOレベルで記録する。
func (s *LogSender) Send(ctx context.Context, rem *model.Reminder) error {
	s.logger.InfoContext(ctx, "リマインダー",
		slog.String("reminder_id", rem.ID),
		slog.String("user_id", rem.UserID),
		slog.String("kind", string(rem.Kind)),
		slog.String("message", rem.Message),
		slog.Time("remind_at", rem.RemindAt),
	)
	return nil
}

// ClientFactory は内部ネットワークへの接続を拒否するHTTPクライアントを生成する。
type ClientFactory interface {
	NewSafeClient(timeout time.Duration) *http.Client
}

// WebhookPayload はWebhookで送信するJSON本文。
type WebhookPayload struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Message  string    `json:"message"`
	RemindAt time.Time `json:"remind_at"`
}

// WebhookSender はリマインダーをWebhookにPOSTする。
type WebhookSender struct {
	client *http.Client
}

// NewWebhookSender はSSRF対策済みのクライアントを使うWebhookSenderを生成する。
func NewWebhookSender(factory ClientFactory, timeout time.Duration) *WebhookSender {
	return &WebhookSender{client: factory.NewSafeClient(timeout)}
}

// Send はWebhook URLにJSONをPOSTする。2xx以外の応答はエラーとする。
func (s *WebhookSender) Send(ctx context.Context, rem *model.Reminder) error {
	body, err := json.Marshal(WebhookPayload{
		ID:       rem.ID,
		Kind:     string(rem.Kind),
		Message:  rem.Message,
		RemindAt: rem.RemindAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("ペイロードの生成に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rem.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Fastrack/1.0 Reminder")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}
