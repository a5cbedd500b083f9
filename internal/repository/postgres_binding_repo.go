package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/emaildid/internal/model"
)

// PostgresBindingRepo はPostgreSQLを使用したバインディングリポジトリ。
type PostgresBindingRepo struct {
	db *sql.DB
}

// NewPostgresBindingRepo はPostgresBindingRepoを生成する。
func NewPostgresBindingRepo(db *sql.DB) *PostgresBindingRepo {
	return &PostgresBindingRepo{db: db}
}

// Put はバインディングをUPSERTする。
// 同じメールダイジェストで再登録した場合は新しいDIDで上書きする。
func (r *PostgresBindingRepo) Put(ctx context.Context, emailDigest, identifier string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_did_bindings (email_digest, identifier, created_at, updated_at)
		 VALUES ($1, $2, now(), now())
		 ON CONFLICT (email_digest)
		 DO UPDATE SET identifier = EXCLUDED.identifier, updated_at = now()`,
		emailDigest, identifier,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert binding: %w", err)
	}
	return nil
}

// Get はメールダイジェストに対応するDIDを取得する。
// 見つからない場合はmodel.ErrNotFoundを返す。
func (r *PostgresBindingRepo) Get(ctx context.Context, emailDigest string) (string, error) {
	var identifier string
	err := r.db.QueryRowContext(ctx,
		`SELECT identifier FROM email_did_bindings WHERE email_digest = $1`,
		emailDigest,
	).Scan(&identifier)

	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to find binding: %w", err)
	}
	return identifier, nil
}

// compile-time interface check
var _ BindingRepository = (*PostgresBindingRepo)(nil)
