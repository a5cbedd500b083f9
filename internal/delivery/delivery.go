// Package delivery は確認コードをメールアドレスへ届ける外部連携クライアントを提供する。
// リレーエンドポイント経由の送信とResend APIへの直接送信の2種類を持つ。
package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/emaildid/internal/model"
)

// maxErrorBodySize はエラーレスポンスとしてログに残すボディの最大長。
const maxErrorBodySize = 1024

// Deliverer は確認コード送信のインターフェース。
// 成功以外の結果はすべてエラーとして返す。リトライは行わない。
type Deliverer interface {
	Deliver(ctx context.Context, email, code string) error
}

// DelivererFunc は関数をDelivererとして扱うアダプタ。
type DelivererFunc func(ctx context.Context, email, code string) error

// Deliver はf(ctx, email, code)を呼び出す。
func (f DelivererFunc) Deliver(ctx context.Context, email, code string) error {
	return f(ctx, email, code)
}

// checkResponse は2xx以外のレスポンスをmodel.ErrDeliveryでラップしたエラーに変換する。
func checkResponse(resp *http.Response) (string, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return "", nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return string(body), fmt.Errorf("%w: upstream returned status %d", model.ErrDelivery, resp.StatusCode)
}
