package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/emaildid/internal/model"
)

const (
	// defaultResendEndpoint はResendのメール送信APIのエンドポイント。
	defaultResendEndpoint = "https://api.resend.com/emails"
	// DefaultFrom はResendの検証済みドメインを使った既定の送信元。
	DefaultFrom = "Auth <onboarding@resend.dev>"

	defaultSubject = "Your verification code"
)

// resendRequest はResend APIのリクエストボディ。
type resendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// ResendClient はResend APIを使って確認コードをメール送信するクライアント。
type ResendClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	from       string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewResendClient はResendClientの新しいインスタンスを生成する。
// fromが空の場合はDefaultFromを使用する。
func NewResendClient(httpClient *http.Client, logger *slog.Logger, apiKey, from string) *ResendClient {
	if from == "" {
		from = DefaultFrom
	}
	return &ResendClient{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		from:       from,
		endpoint:   defaultResendEndpoint,
	}
}

// Deliver は確認コードを記載したメールを送信する。
func (c *ResendClient) Deliver(ctx context.Context, email, code string) error {
	payload, err := json.Marshal(resendRequest{
		From:    c.from,
		To:      email,
		Subject: defaultSubject,
		Text:    messageText(code),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to encode resend request: %v", model.ErrDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to build resend request: %v", model.ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("resend API request failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %w", model.ErrDelivery, err)
	}
	defer resp.Body.Close()

	body, err := checkResponse(resp)
	if err != nil {
		c.logger.Error("resend API returned error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", body),
		)
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func messageText(code string) string {
	return fmt.Sprintf("Your code: %s\n\nThis code confirms that you own this email address. It is not stored on the server.", code)
}

// compile-time interface check
var _ Deliverer = (*ResendClient)(nil)
