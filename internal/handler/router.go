package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/emaildid/internal/binding"
	"github.com/hitoshi/emaildid/internal/delivery"
	"github.com/hitoshi/emaildid/internal/metrics"
	"github.com/hitoshi/emaildid/internal/middleware"
	"github.com/hitoshi/emaildid/internal/repository"
)

// healthCheckTimeout はDB死活確認に許す時間。
const healthCheckTimeout = 2 * time.Second

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	Cookie            middleware.RegistrationCookieConfig
	RateLimiter       *middleware.RateLimiter

	// 登録
	Sessions SessionRegistry

	// 署名（nilの場合、秘密鍵はサーバーに保持されない）
	Signer Signer

	// バインディング
	Bindings binding.Store

	// コード中継（nilの場合は/api/send-codeを公開しない）
	Relay delivery.Deliverer

	// 運用
	HealthChecker repository.Pinger   // nilの場合はDB確認を省略する
	Gatherer      prometheus.Gatherer // nilの場合は/metricsを公開しない
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → SecurityHeaders → CORS → Registration → Logging → RateLimit(General)
//
// CORSはプリフライトに応答するためルーティングより前に置く。
// /health と /metrics は登録Cookieを発行しない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Cookie.Secure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	registrationHandler := NewRegistrationHandler(deps.Sessions)
	identityHandler := NewIdentityHandler(deps.Sessions, deps.Signer)
	bindingHandler := NewBindingHandler(deps.Bindings)

	// --- API ---
	// ミドルウェアスタック: Registration → Logging → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRegistrationMiddleware(deps.Cookie))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/registrations", func(r chi.Router) {
			// POST /api/registrations - コード送信（送信専用レート制限を追加）
			r.With(deps.RateLimiter.CodeSendMiddleware()).Post("/", registrationHandler.Start)
			r.Get("/", registrationHandler.Status)
			r.Delete("/", registrationHandler.Cancel)
			r.Post("/confirm", registrationHandler.Confirm)
		})

		r.Route("/api/identities", func(r chi.Router) {
			r.Post("/sign", identityHandler.Sign)
			r.Post("/verify", identityHandler.Verify)
		})

		r.Get("/api/bindings/{digest}", bindingHandler.Get)

		if deps.Relay != nil {
			relay := NewRelayHandler(deps.Relay, logger)
			// 405を自前で返すため全メソッドを受ける
			r.With(deps.RateLimiter.CodeSendMiddleware()).Handle("/api/send-code", relay)
		}
	})

	return r
}

// healthHandler はプロセスとDBの死活を返すハンドラーを生成する。
// GET /health
func healthHandler(checker repository.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Warn("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
