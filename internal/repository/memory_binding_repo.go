package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/emaildid/internal/model"
)

// MemoryBindingRepo はプロセス内メモリに保持するバインディングリポジトリ。
// DATABASE_URL未設定時の既定実装として使用する。
type MemoryBindingRepo struct {
	mu       sync.RWMutex
	bindings map[string]string
}

// NewMemoryBindingRepo はMemoryBindingRepoを生成する。
func NewMemoryBindingRepo() *MemoryBindingRepo {
	return &MemoryBindingRepo{bindings: make(map[string]string)}
}

// Put はバインディングを保存する。
func (r *MemoryBindingRepo) Put(ctx context.Context, emailDigest, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[emailDigest] = identifier
	return nil
}

// Get はメールダイジェストに対応するDIDを返す。
func (r *MemoryBindingRepo) Get(ctx context.Context, emailDigest string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	identifier, ok := r.bindings[emailDigest]
	if !ok {
		return "", model.ErrNotFound
	}
	return identifier, nil
}

// NopBindingRepo は何も保存しないバインディングリポジトリ。
// バインディングストアを無効化する場合に使用する。
type NopBindingRepo struct{}

// Put は何もせずnilを返す。
func (NopBindingRepo) Put(context.Context, string, string) error { return nil }

// Get は常にmodel.ErrNotFoundを返す。
func (NopBindingRepo) Get(context.Context, string) (string, error) { return "", model.ErrNotFound }

// compile-time interface check
var _ BindingRepository = (*MemoryBindingRepo)(nil)
var _ BindingRepository = NopBindingRepo{}
