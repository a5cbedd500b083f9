// Package verification はメールアドレス確認によるdid:key発行の状態機械を提供する。
//
// 1つのSessionは1人の利用者の1回分の登録を表す。
// 状態は Idle → CodeSent → Confirmed と遷移し、
// 確認コードの送信中はセッションのロックを保持しない。
package verification

import (
	"context"
	"crypto/ed25519"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/emaildid/internal/binding"
	"github.com/hitoshi/emaildid/internal/delivery"
	"github.com/hitoshi/emaildid/internal/did"
	"github.com/hitoshi/emaildid/internal/emaildigest"
	"github.com/hitoshi/emaildid/internal/metrics"
	"github.com/hitoshi/emaildid/internal/model"
)

// DefaultDeliveryTimeout は確認コード送信1回に許す時間のデフォルト値。
const DefaultDeliveryTimeout = 10 * time.Second

// Policy は登録フローの制限値。
type Policy struct {
	// DeliveryTimeout は送信1回のタイムアウト。0以下はDefaultDeliveryTimeout。
	DeliveryTimeout time.Duration
	// MaxAttempts はコード不一致を許す回数。0は無制限。
	MaxAttempts int
	// CodeTTL はコードの有効期間。0は期限なし。
	CodeTTL time.Duration
}

// KeyStore は確認完了後の秘密鍵の保管先。keyvault.Vaultが満たす。
// 発行したSessionが破棄されるか新しい登録を始めると、その識別子の鍵はForgetされる。
type KeyStore interface {
	Store(identifier string, priv ed25519.PrivateKey) error
	Forget(identifier string)
}

// BindingWriter はバインディングの非同期書き込み先。binding.Writerが満たす。
type BindingWriter interface {
	Write(rec binding.Record)
}

// Dependencies はSessionが利用する協調オブジェクト。
// Delivery以外は省略可能で、未指定の場合は既定の実装を使う。
type Dependencies struct {
	KeyGen   did.KeyGenerator
	Codes    CodeGenerator
	Delivery delivery.Deliverer
	Bindings BindingWriter // nilの場合は書き込まない
	Vault    KeyStore      // nilの場合は確認後に秘密鍵を破棄する
	Clock    func() time.Time
	Policy   Policy
	Logger   *slog.Logger
	Metrics  metrics.MetricsCollector
}

func (d Dependencies) withDefaults() Dependencies {
	if d.KeyGen == nil {
		d.KeyGen = did.Ed25519Generator{}
	}
	if d.Codes == nil {
		d.Codes = RandomCodes{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Policy.DeliveryTimeout <= 0 {
		d.Policy.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	return d
}

// Session は1回分の登録フローの状態を保持する。
type Session struct {
	deps Dependencies

	mu         sync.Mutex
	state      model.RegistrationState
	email      string
	identifier string
	code       string
	keys       *did.KeyPair
	codeSentAt time.Time
	attempts   int
	issued     string
	lastActive time.Time

	// 送信中の試行。Cancelや新しいSubmitEmailで無効化される。
	attemptID      string
	cancelDelivery context.CancelFunc
}

// NewSession はIdle状態のSessionを生成する。
func NewSession(deps Dependencies) *Session {
	deps = deps.withDefaults()
	return &Session{
		deps:       deps,
		state:      model.RegistrationIdle,
		lastActive: deps.Clock(),
	}
}

// SubmitEmail は新しい登録を開始する。
//
// メールアドレスを検証し、鍵ペアとdid:key識別子、確認コードを生成して
// Deliveryへ送信を依頼する。送信に成功するとCodeSentへ遷移する。
// 送信失敗・タイムアウト・キャンセル時はIdleに戻り、model.ErrDeliveryを返す。
// どの状態から呼んでも、それまでの保留中の状態は破棄される。
func (s *Session) SubmitEmail(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	email = strings.TrimSpace(email)

	s.mu.Lock()
	s.abortDeliveryLocked()
	s.resetLocked()
	s.lastActive = s.deps.Clock()

	keys, err := s.deps.KeyGen.Generate()
	if err != nil {
		s.mu.Unlock()
		s.deps.Logger.Error("key generation failed", slog.String("error", err.Error()))
		return asKeyGenerationError(err)
	}
	identifier, err := did.FromKeyPair(keys)
	if err != nil {
		keys.Wipe()
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", model.ErrKeyGeneration, err)
	}
	code, err := s.deps.Codes.Generate()
	if err != nil {
		keys.Wipe()
		s.mu.Unlock()
		s.deps.Logger.Error("verification code generation failed", slog.String("error", err.Error()))
		return asKeyGenerationError(err)
	}

	attemptID := uuid.NewString()
	dctx, cancel := context.WithTimeout(ctx, s.deps.Policy.DeliveryTimeout)

	s.email = email
	s.identifier = identifier
	s.code = code
	s.keys = &keys
	s.attemptID = attemptID
	s.cancelDelivery = cancel
	s.mu.Unlock()

	s.deps.Metrics.RecordRegistrationStarted()
	logger := s.deps.Logger.With(slog.String("attempt_id", attemptID))

	start := time.Now()
	deliverErr := s.deps.Delivery.Deliver(dctx, email, code)
	elapsed := time.Since(start)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attemptID != attemptID {
		// Cancelまたは後続のSubmitEmailに置き換えられた
		s.deps.Metrics.RecordCodeDeliveryFailure("canceled")
		logger.Info("registration attempt superseded before delivery completed")
		return fmt.Errorf("%w: %w", model.ErrDelivery, context.Canceled)
	}
	s.attemptID = ""
	s.cancelDelivery = nil

	if deliverErr != nil {
		s.resetLocked()
		s.deps.Metrics.RecordCodeDeliveryFailure(failureReason(deliverErr))
		logger.Warn("verification code delivery failed",
			slog.String("email", email),
			slog.String("error", deliverErr.Error()),
		)
		if errors.Is(deliverErr, model.ErrDelivery) {
			return deliverErr
		}
		return fmt.Errorf("%w: %w", model.ErrDelivery, deliverErr)
	}

	s.state = model.RegistrationCodeSent
	s.codeSentAt = s.deps.Clock()
	s.lastActive = s.codeSentAt
	s.deps.Metrics.RecordCodeDelivered(elapsed)
	logger.Info("verification code sent",
		slog.String("email", email),
		slog.String("identifier", identifier),
	)
	return nil
}

// SubmitCode は利用者が入力した確認コードを照合する。
//
// 一致した場合はConfirmedへ遷移し、発行したdid:key識別子を返す。
// 不一致の場合はCodeSentのままmodel.ErrCodeMismatchを返し、同じコードは引き続き有効。
// CodeSent以外の状態ではmodel.ErrNoPendingRegistrationを返す。
func (s *Session) SubmitCode(ctx context.Context, candidate string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.deps.Clock()
	s.lastActive = now

	if s.state != model.RegistrationCodeSent {
		return "", model.ErrNoPendingRegistration
	}

	if ttl := s.deps.Policy.CodeTTL; ttl > 0 && now.Sub(s.codeSentAt) > ttl {
		s.resetLocked()
		s.deps.Logger.Info("verification code expired", slog.Duration("code_ttl", ttl))
		return "", model.ErrCodeExpired
	}

	if subtle.ConstantTimeCompare([]byte(candidate), []byte(s.code)) != 1 {
		s.attempts++
		s.deps.Metrics.RecordCodeMismatch()
		if limit := s.deps.Policy.MaxAttempts; limit > 0 && s.attempts >= limit {
			s.resetLocked()
			s.deps.Logger.Warn("verification attempts exhausted", slog.Int("max_attempts", limit))
			return "", model.ErrTooManyAttempts
		}
		return "", model.ErrCodeMismatch
	}

	return s.confirmLocked(), nil
}

func (s *Session) confirmLocked() string {
	identifier := s.identifier

	if s.deps.Bindings != nil {
		// 検証済みのアドレスなのでDigestは失敗しない
		if digest, err := emaildigest.Digest(s.email); err == nil {
			s.deps.Bindings.Write(binding.Record{EmailDigest: digest, Identifier: identifier})
		}
	}

	if s.deps.Vault != nil && s.keys != nil {
		if err := s.deps.Vault.Store(identifier, s.keys.PrivateKey); err != nil {
			s.deps.Logger.Warn("failed to retain private key",
				slog.String("identifier", identifier),
				slog.String("error", err.Error()),
			)
		}
	}
	s.wipeKeysLocked()

	s.state = model.RegistrationConfirmed
	s.issued = identifier
	s.identifier = ""
	s.email = ""
	s.code = ""
	s.attempts = 0
	s.codeSentAt = time.Time{}

	s.deps.Metrics.RecordConfirmation()
	s.deps.Logger.Info("registration confirmed", slog.String("identifier", identifier))
	return identifier
}

// Cancel は保留中の登録を取り消してIdleに戻す。
// 送信中であれば送信を中断する。生成済みの鍵は破棄しない。
// Confirmedの場合は何もしない。
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = s.deps.Clock()
	if s.state == model.RegistrationConfirmed {
		return
	}
	s.abortDeliveryLocked()
	s.state = model.RegistrationIdle
	s.email = ""
	s.code = ""
	s.attempts = 0
	s.codeSentAt = time.Time{}
}

// Close はセッションを破棄する。送信中なら中断し、鍵をゼロクリアする。
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abortDeliveryLocked()
	s.resetLocked()
}

// Snapshot は現在の状態を返す。メールアドレスはマスクした形でのみ返す。
func (s *Session) Snapshot() model.RegistrationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := model.RegistrationStatus{
		State:    s.state,
		Attempts: s.attempts,
	}
	switch s.state {
	case model.RegistrationCodeSent:
		status.MaskedEmail = emaildigest.Mask(s.email)
		status.CodeSentAt = s.codeSentAt
	case model.RegistrationConfirmed:
		status.Identifier = s.issued
	}
	return status
}

// State は現在の状態を返す。
func (s *Session) State() model.RegistrationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identifier は発行済みのdid:key識別子を返す。Confirmedでない場合はokがfalse。
func (s *Session) Identifier() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != model.RegistrationConfirmed {
		return "", false
	}
	return s.issued, true
}

// idleSince は最終操作時刻と送信中かどうかを返す。
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.attemptID != ""
}

func (s *Session) abortDeliveryLocked() {
	if s.cancelDelivery != nil {
		s.cancelDelivery()
	}
	s.cancelDelivery = nil
	s.attemptID = ""
}

// resetLocked は保留中の状態と鍵をクリアしてIdleに戻す。
// 発行済みの識別子があれば、保管庫に預けた秘密鍵も破棄する。
func (s *Session) resetLocked() {
	s.wipeKeysLocked()
	if s.issued != "" && s.deps.Vault != nil {
		s.deps.Vault.Forget(s.issued)
	}
	s.state = model.RegistrationIdle
	s.email = ""
	s.identifier = ""
	s.code = ""
	s.attempts = 0
	s.codeSentAt = time.Time{}
	s.issued = ""
}

func (s *Session) wipeKeysLocked() {
	if s.keys != nil {
		s.keys.Wipe()
		s.keys = nil
	}
}

// asKeyGenerationError は鍵やコードの生成失敗をmodel.ErrKeyGenerationとして返す。
func asKeyGenerationError(err error) error {
	if errors.Is(err, model.ErrKeyGeneration) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrKeyGeneration, err)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "upstream"
	}
}
