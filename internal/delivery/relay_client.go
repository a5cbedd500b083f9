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

// RelayRequest はコード送信リレーへのリクエストボディ。
type RelayRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// RelayClient はコード送信リレーエンドポイントのクライアント。
// {email, code} をJSONでPOSTし、2xx以外はmodel.ErrDeliveryとして扱う。
type RelayClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewRelayClient はRelayClientの新しいインスタンスを生成する。
func NewRelayClient(httpClient *http.Client, logger *slog.Logger, endpoint string) *RelayClient {
	return &RelayClient{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

// Deliver は確認コードをリレーエンドポイントへ送信する。
func (c *RelayClient) Deliver(ctx context.Context, email, code string) error {
	payload, err := json.Marshal(RelayRequest{Email: email, Code: code})
	if err != nil {
		return fmt.Errorf("%w: failed to encode relay request: %v", model.ErrDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to build relay request: %v", model.ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("code relay request failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %w", model.ErrDelivery, err)
	}
	defer resp.Body.Close()

	body, err := checkResponse(resp)
	if err != nil {
		c.logger.Error("code relay returned error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", body),
		)
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// compile-time interface check
var _ Deliverer = (*RelayClient)(nil)
