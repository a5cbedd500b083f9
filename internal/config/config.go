package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
// CONFIG_FILE で指定したYAMLファイルの値は既定値を上書きし、環境変数はさらにそれを上書きする。
type Config struct {
	// Database（未設定の場合はメモリ上のバインディングストアを使う）
	DatabaseURL string

	// Code delivery
	CodeRelayURL    string
	ResendAPIKey    string
	ResendFrom      string
	DeliveryTimeout time.Duration

	// Verification
	CodeTTL         time.Duration
	CodeMaxAttempts int
	SessionIdleTTL  time.Duration
	SweepInterval   time.Duration

	// Binding store
	BindingStore   string // "", "postgres", "memory", "none"（空はDATABASE_URLの有無で決める）
	BindingTimeout time.Duration

	// Key vault（未設定の場合は確認後に秘密鍵を破棄する）
	KeyVaultSecret string

	// Rate Limit
	RateLimitGeneral  int
	RateLimitCodeSend int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS（カンマ区切りで複数指定できる）
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// BINDING_STOREで選べるバインディングストア。
const (
	BindingStorePostgres = "postgres"
	BindingStoreMemory   = "memory"
	BindingStoreNone     = "none"
)

// fileConfig はCONFIG_FILEのYAML表現。
type fileConfig struct {
	Server struct {
		Port              string `yaml:"port"`
		BaseURL           string `yaml:"baseURL"`
		CookieDomain      string `yaml:"cookieDomain"`
		CORSAllowedOrigin string `yaml:"corsAllowedOrigin"`
	} `yaml:"server"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Delivery struct {
		RelayURL     string        `yaml:"relayURL"`
		ResendAPIKey string        `yaml:"resendAPIKey"`
		ResendFrom   string        `yaml:"resendFrom"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"delivery"`
	Verification struct {
		CodeTTL        time.Duration `yaml:"codeTTL"`
		MaxAttempts    int           `yaml:"maxAttempts"`
		SessionIdleTTL time.Duration `yaml:"sessionIdleTTL"`
		SweepInterval  time.Duration `yaml:"sweepInterval"`
	} `yaml:"verification"`
	Binding struct {
		Store   string        `yaml:"store"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"binding"`
	KeyVault struct {
		Secret string `yaml:"secret"`
	} `yaml:"keyVault"`
	RateLimit struct {
		General  int `yaml:"general"`
		CodeSend int `yaml:"codeSend"`
	} `yaml:"rateLimit"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load は環境変数（とCONFIG_FILEが指定されていればYAMLファイル）からConfigを読み込む。
// 必須項目が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	var file fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		file = *loaded
	}

	cfg := &Config{}

	cfg.DatabaseURL = getEnvString("DATABASE_URL", file.Database.URL)
	cfg.CodeRelayURL = getEnvString("CODE_RELAY_URL", file.Delivery.RelayURL)
	cfg.ResendAPIKey = getEnvString("RESEND_API_KEY", file.Delivery.ResendAPIKey)
	cfg.ResendFrom = getEnvString("RESEND_FROM", file.Delivery.ResendFrom)
	cfg.KeyVaultSecret = getEnvString("KEY_VAULT_SECRET", file.KeyVault.Secret)
	cfg.BaseURL = getEnvString("BASE_URL", file.Server.BaseURL)

	// Required fields
	var missing []string
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if cfg.CodeRelayURL == "" && cfg.ResendAPIKey == "" {
		missing = append(missing, "CODE_RELAY_URL or RESEND_API_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.BindingStore = strings.ToLower(getEnvString("BINDING_STORE", file.Binding.Store))
	switch cfg.BindingStore {
	case "", BindingStorePostgres, BindingStoreMemory, BindingStoreNone:
	default:
		return nil, fmt.Errorf("unknown BINDING_STORE %q", cfg.BindingStore)
	}
	if cfg.BindingStore == BindingStorePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("BINDING_STORE=postgres requires DATABASE_URL")
	}

	// Optional fields with defaults
	cfg.DeliveryTimeout = getEnvDuration("DELIVERY_TIMEOUT", orDuration(file.Delivery.Timeout, 10*time.Second))
	cfg.CodeTTL = getEnvDuration("CODE_TTL", file.Verification.CodeTTL)
	cfg.CodeMaxAttempts = getEnvInt("CODE_MAX_ATTEMPTS", file.Verification.MaxAttempts)
	cfg.SessionIdleTTL = getEnvDuration("SESSION_IDLE_TTL", orDuration(file.Verification.SessionIdleTTL, 30*time.Minute))
	cfg.SweepInterval = getEnvDuration("SESSION_SWEEP_INTERVAL", orDuration(file.Verification.SweepInterval, time.Minute))
	cfg.BindingTimeout = getEnvDuration("BINDING_TIMEOUT", orDuration(file.Binding.Timeout, 5*time.Second))
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", orInt(file.RateLimit.General, 120))
	cfg.RateLimitCodeSend = getEnvInt("RATE_LIMIT_CODE_SEND", orInt(file.RateLimit.CodeSend, 5))
	cfg.ServerPort = getEnvString("SERVER_PORT", orString(file.Server.Port, "8080"))
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", file.Server.CookieDomain)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", orString(file.Server.CORSAllowedOrigin, "http://localhost:3000"))
	cfg.LogLevel = getEnvString("LOG_LEVEL", orString(file.Log.Level, "info"))

	return cfg, nil
}

// loadFile はYAML設定ファイルを読み込む。
// 明示的に指定されたファイルなので、読めない場合や形式が不正な場合はエラーにする。
func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &fc, nil
}

func orString(v, defaultVal string) string {
	if v != "" {
		return v
	}
	return defaultVal
}

func orInt(v, defaultVal int) int {
	if v != 0 {
		return v
	}
	return defaultVal
}

func orDuration(v, defaultVal time.Duration) time.Duration {
	if v != 0 {
		return v
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
