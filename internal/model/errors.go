// Package model はドメインモデルとエラー定義を提供する。
package model

import (
	"errors"
	"fmt"
)

// 登録フローで発生するドメインエラー。
// 呼び出し側はerrors.Isで判定する。
var (
	ErrInvalidEmail          = errors.New("invalid email address")
	ErrInvalidKeyLength      = errors.New("invalid public key length")
	ErrInvalidIdentifier     = errors.New("invalid did:key identifier")
	ErrKeyGeneration         = errors.New("key generation failed")
	ErrDelivery              = errors.New("verification code delivery failed")
	ErrCodeMismatch          = errors.New("verification code mismatch")
	ErrBinding               = errors.New("binding store operation failed")
	ErrNoPendingRegistration = errors.New("no pending registration")
	ErrCodeExpired           = errors.New("verification code expired")
	ErrTooManyAttempts       = errors.New("too many verification attempts")
	ErrNotFound              = errors.New("not found")
	ErrKeyNotRetained        = errors.New("private key is not retained")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: registration, validation, identity, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidEmail          = "INVALID_EMAIL"
	ErrCodeInvalidIdentifier     = "INVALID_IDENTIFIER"
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeDeliveryFailed        = "DELIVERY_FAILED"
	ErrCodeCodeMismatch          = "CODE_MISMATCH"
	ErrCodeCodeExpired           = "CODE_EXPIRED"
	ErrCodeTooManyAttempts       = "TOO_MANY_ATTEMPTS"
	ErrCodeNoPendingRegistration = "NO_PENDING_REGISTRATION"
	ErrCodeBindingNotFound       = "BINDING_NOT_FOUND"
	ErrCodeIdentityNotIssued     = "IDENTITY_NOT_ISSUED"
	ErrCodeKeyGenerationFailed   = "KEY_GENERATION_FAILED"
	ErrCodeKeyNotRetained        = "KEY_NOT_RETAINED"
	ErrCodeInvalidDigest         = "INVALID_DIGEST"
	ErrCodeRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// NewInvalidEmailError は無効なメールアドレスエラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "The email address is not valid.",
		Category: "validation",
		Action:   "Enter an address of the form name@example.com.",
	}
}

// NewInvalidIdentifierError は無効なDIDエラーを生成する。
func NewInvalidIdentifierError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidIdentifier,
		Message:  fmt.Sprintf("The identifier is not a valid did:key: %s", reason),
		Category: "validation",
		Action:   "Provide an identifier that starts with did:key:z.",
	}
}

// NewInvalidRequestError はリクエストボディの形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("The request is malformed: %s", reason),
		Category: "validation",
		Action:   "Check the request body and try again.",
	}
}

// NewDeliveryFailedError は確認コード送信失敗エラーを生成する。
func NewDeliveryFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeDeliveryFailed,
		Message:  "The verification code could not be sent.",
		Category: "registration",
		Action:   "Check the address and submit it again.",
	}
}

// NewCodeMismatchError はコード不一致エラーを生成する。
// セッションはCodeSentのまま維持されるため、再入力を促す。
func NewCodeMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeCodeMismatch,
		Message:  "The verification code is incorrect.",
		Category: "registration",
		Action:   "Enter the 6-digit code from the email again.",
	}
}

// NewCodeExpiredError はコード期限切れエラーを生成する。
func NewCodeExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeCodeExpired,
		Message:  "The verification code has expired.",
		Category: "registration",
		Action:   "Submit your email again to receive a new code.",
	}
}

// NewTooManyAttemptsError は試行回数超過エラーを生成する。
func NewTooManyAttemptsError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyAttempts,
		Message:  "Too many incorrect codes were entered.",
		Category: "registration",
		Action:   "Submit your email again to receive a new code.",
	}
}

// NewNoPendingRegistrationError は保留中の登録がない場合のエラーを生成する。
func NewNoPendingRegistrationError() *APIError {
	return &APIError{
		Code:     ErrCodeNoPendingRegistration,
		Message:  "There is no registration waiting for a code.",
		Category: "registration",
		Action:   "Submit your email address first.",
	}
}

// NewBindingNotFoundError はバインディング未検出エラーを生成する。
func NewBindingNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeBindingNotFound,
		Message:  "No identifier is bound to this email digest.",
		Category: "identity",
		Action:   "Check the digest or register the address first.",
	}
}

// NewIdentityNotIssuedError は署名対象のDIDが未発行の場合のエラーを生成する。
func NewIdentityNotIssuedError() *APIError {
	return &APIError{
		Code:     ErrCodeIdentityNotIssued,
		Message:  "No identifier with a retained key has been issued in this session.",
		Category: "identity",
		Action:   "Complete the registration before signing.",
	}
}

// NewKeyGenerationFailedError は鍵生成失敗エラーを生成する。
func NewKeyGenerationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeKeyGenerationFailed,
		Message:  "A key pair could not be generated.",
		Category: "system",
		Action:   "Please try again in a moment.",
	}
}

// NewKeyNotRetainedError は秘密鍵が保持されていない場合のエラーを生成する。
// キー保管庫が無効な場合、確認後に秘密鍵は破棄される。
func NewKeyNotRetainedError() *APIError {
	return &APIError{
		Code:     ErrCodeKeyNotRetained,
		Message:  "The private key for this identifier is not retained by the server.",
		Category: "identity",
		Action:   "Sign with a client that holds the key.",
	}
}

// NewInvalidDigestError はメールダイジェストの形式エラーを生成する。
func NewInvalidDigestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDigest,
		Message:  "The email digest must be 64 lowercase hex characters.",
		Category: "validation",
		Action:   "Compute the SHA-256 digest of the normalized address.",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please try again in a moment.",
	}
}
