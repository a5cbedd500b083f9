// Package repository はデータ永続化のインターフェースと実装を定義する。
package repository

import (
	"context"
	"database/sql"
)

// BindingRepository はメールダイジェストとDIDの対応の永続化インターフェース。
// 登録フローはこのインターフェースのみに依存し、実装の差し替え（無効化、
// PostgreSQL、分散ストア等）で状態機械を変更しない。
type BindingRepository interface {
	// Put はemailDigestに対応するidentifierを保存する。既存の対応は上書きする。
	Put(ctx context.Context, emailDigest, identifier string) error

	// Get はemailDigestに対応するidentifierを返す。
	// 見つからない場合はmodel.ErrNotFoundを返す。
	Get(ctx context.Context, emailDigest string) (string, error)
}

// Pinger はDB接続の死活確認用のインターフェース。
// *sql.DB が満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// compile-time interface check
var _ Pinger = (*sql.DB)(nil)
