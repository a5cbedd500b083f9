// Package model はドメインモデルとエラー定義を提供する。
package model

import "time"

// RegistrationState は登録セッションの状態を表す。
type RegistrationState string

const (
	// RegistrationIdle は保留中のコードがない初期状態。
	RegistrationIdle RegistrationState = "idle"
	// RegistrationCodeSent は確認コードが送信済みで入力待ちの状態。
	RegistrationCodeSent RegistrationState = "code_sent"
	// RegistrationConfirmed はコードが一致しDIDが発行された状態。
	RegistrationConfirmed RegistrationState = "confirmed"
)

// RegistrationStatus は登録セッションの外部公開用スナップショット。
// メールアドレスはマスク済みの形式のみを保持する。
type RegistrationStatus struct {
	State       RegistrationState
	MaskedEmail string    // CodeSentの間のみ設定される
	Identifier  string    // Confirmedの場合のみ設定される
	CodeSentAt  time.Time // CodeSentの間のみ設定される
	Attempts    int
}

// Binding はメールダイジェストとDIDの対応を表す。
// メールアドレス自体は保持しない。
type Binding struct {
	EmailDigest string
	Identifier  string
	CreatedAt   time.Time
}
