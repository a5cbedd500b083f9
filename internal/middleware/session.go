// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RegistrationCookieName は登録セッションIDを保持するCookieの名前。
const RegistrationCookieName = "registration_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// registrationIDContextKey はリクエストコンテキストに登録セッションIDを格納するためのキー。
var registrationIDContextKey = contextKey("registration_id")

// RegistrationCookieConfig は登録Cookieの属性。
type RegistrationCookieConfig struct {
	Secure bool
	Domain string
	MaxAge time.Duration
}

// NewRegistrationMiddleware はHTTP Only Cookieから登録セッションIDを読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない、またはUUIDとして不正な場合は新しいIDを発行してCookieに設定する。
// 認証は行わない。IDは利用者ごとのVerificationSessionを選ぶためだけに使う。
func NewRegistrationMiddleware(config RegistrationCookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if cookie, err := r.Cookie(RegistrationCookieName); err == nil {
				if parsed, err := uuid.Parse(cookie.Value); err == nil {
					id = parsed.String()
				}
			}

			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     RegistrationCookieName,
					Value:    id,
					Path:     "/",
					Domain:   config.Domain,
					MaxAge:   int(config.MaxAge.Seconds()),
					HttpOnly: true,
					Secure:   config.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), registrationIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RegistrationIDFromContext はリクエストコンテキストから登録セッションIDを取得する。
// 登録ミドルウェアを通過したリクエストでのみ有効。
func RegistrationIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(registrationIDContextKey).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("registration ID not found in context")
	}
	return id, nil
}

// ContextWithRegistrationID はコンテキストに登録セッションIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithRegistrationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, registrationIDContextKey, id)
}
