package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/emaildid/internal/binding"
	"github.com/hitoshi/emaildid/internal/config"
	"github.com/hitoshi/emaildid/internal/database"
	"github.com/hitoshi/emaildid/internal/delivery"
	"github.com/hitoshi/emaildid/internal/handler"
	"github.com/hitoshi/emaildid/internal/keyvault"
	"github.com/hitoshi/emaildid/internal/logger"
	"github.com/hitoshi/emaildid/internal/metrics"
	"github.com/hitoshi/emaildid/internal/middleware"
	"github.com/hitoshi/emaildid/internal/repository"
	"github.com/hitoshi/emaildid/internal/verification"
	"github.com/hitoshi/emaildid/internal/worker/cleanup"
)

// dbPingTimeout は起動時のDB接続確認に許す時間。
const dbPingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// Server はAPIサーバーを構成する依存関係一式。
type Server struct {
	Handler     http.Handler
	Registry    *verification.Registry
	Bindings    *binding.Writer
	Cleanup     *cleanup.CleanupJob
	RateLimiter *middleware.RateLimiter

	db *sql.DB // DATABASE_URL未設定の場合はnil
}

// NewServer は設定から全依存関係をワイヤリングする。
// regにはアプリケーションのメトリクスとGo/プロセスのメトリクスを登録する。
func NewServer(cfg *config.Config, log *slog.Logger, reg *prometheus.Registry) (*Server, error) {
	srv := &Server{}

	// 1. メトリクス
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. バインディングストア
	store, err := srv.openBindingStore(cfg, log)
	if err != nil {
		return nil, err
	}
	writer := binding.NewWriter(store, cfg.BindingTimeout, log, collector)

	// 3. 確認コードの配送
	httpClient := &http.Client{Timeout: cfg.DeliveryTimeout}
	var deliverer delivery.Deliverer
	if cfg.CodeRelayURL != "" {
		deliverer = delivery.NewRelayClient(httpClient, log, cfg.CodeRelayURL)
	} else {
		deliverer = delivery.NewResendClient(httpClient, log, cfg.ResendAPIKey, cfg.ResendFrom)
	}

	// 中継エンドポイントはResendのAPIキーがある場合のみ公開する
	var relay delivery.Deliverer
	if cfg.ResendAPIKey != "" {
		relay = delivery.NewResendClient(httpClient, log, cfg.ResendAPIKey, cfg.ResendFrom)
	}

	// 4. 秘密鍵の保持（未設定の場合は確認後に破棄する）
	deps := verification.Dependencies{
		Delivery: deliverer,
		Bindings: writer,
		Policy: verification.Policy{
			DeliveryTimeout: cfg.DeliveryTimeout,
			MaxAttempts:     cfg.CodeMaxAttempts,
			CodeTTL:         cfg.CodeTTL,
		},
		Logger:  log,
		Metrics: collector,
	}
	var signer handler.Signer
	if cfg.KeyVaultSecret != "" {
		vault, err := keyvault.New([]byte(cfg.KeyVaultSecret))
		if err != nil {
			srv.Close()
			return nil, fmt.Errorf("failed to create key vault: %w", err)
		}
		deps.Vault = vault
		signer = vault
	}

	// 5. 登録セッション
	registry := verification.NewRegistry(deps)

	// 6. ルーターの構築
	// configのレート制限はreq/min単位
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitCodeSend),
	)

	routerDeps := &handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Cookie: middleware.RegistrationCookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			MaxAge: cfg.SessionIdleTTL,
		},
		RateLimiter: rateLimiter,
		Sessions:    handler.NewRegistryAdapter(registry),
		Signer:      signer,
		Bindings:    store,
		Relay:       relay,
		Gatherer:    reg,
	}
	if srv.db != nil {
		routerDeps.HealthChecker = srv.db
	}

	// 7. アイドルセッションのクリーンアップ
	cleanupJob := cleanup.NewCleanupJob(registry, log, collector)
	cleanupJob.MaxIdle = cfg.SessionIdleTTL

	srv.Handler = handler.NewRouter(routerDeps)
	srv.Registry = registry
	srv.Bindings = writer
	srv.Cleanup = cleanupJob
	srv.RateLimiter = rateLimiter
	return srv, nil
}

// openBindingStore はBINDING_STOREとDATABASE_URLからバインディングストアを選ぶ。
// PostgreSQLを使う場合は接続を確認し、srv.dbに保持する。
func (s *Server) openBindingStore(cfg *config.Config, log *slog.Logger) (binding.Store, error) {
	mode := cfg.BindingStore
	if mode == "" {
		mode = config.BindingStoreMemory
		if cfg.DatabaseURL != "" {
			mode = config.BindingStorePostgres
		}
	}

	switch mode {
	case config.BindingStoreNone:
		log.Info("binding store disabled")
		return repository.NopBindingRepo{}, nil
	case config.BindingStoreMemory:
		log.Info("using in-memory binding store")
		return repository.NewMemoryBindingRepo(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig)
	if err != nil {
		return nil, err
	}

	log.Info("database connection established")
	s.db = db
	return repository.NewPostgresBindingRepo(db), nil
}

// Close はバックグラウンド処理を止め、未完了のバインディング書き込みを待ってからDBを閉じる。
func (s *Server) Close() {
	if s.RateLimiter != nil {
		s.RateLimiter.Stop()
	}
	if s.Bindings != nil {
		s.Bindings.Wait()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーとセッションクリーンアップを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	srv, err := NewServer(cfg, slog.Default(), prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// アイドルセッションのクリーンアップをバックグラウンドで実行
	go srv.Cleanup.Start(ctx, cfg.SweepInterval)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.DeliveryTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしまたはupで未適用分をすべて適用し、down [N] で直近N件を戻し、versionで現在のバージョンを出力する。
func runMigrate(cfg *config.Config, args []string) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("migrate requires DATABASE_URL")
	}

	action, steps, err := ParseMigrateAction(args)
	if err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back", slog.Int("steps", steps))
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		slog.Info("database migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
	}

	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
