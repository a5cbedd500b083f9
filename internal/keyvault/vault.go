// Package keyvault は発行済みDIDの秘密鍵を暗号化して保持し、
// ローカル署名機能を提供する。
//
// 秘密鍵はエントリごとのソルトとHKDF-SHA256で導出した鍵で
// XChaCha20-Poly1305により封印し、平文ではメモリに保持しない。
package keyvault

import (
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hitoshi/emaildid/internal/model"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	saltSize = 16
	hkdfInfo = "emaildid/keyvault/v1"
)

// ErrAuthFailed は封印データの復号に失敗したことを示す。
var ErrAuthFailed = errors.New("keyvault authentication failed")

type sealed struct {
	salt       []byte
	nonce      []byte
	ciphertext []byte
}

// Vault はDIDごとに封印済みの秘密鍵を保持する。
type Vault struct {
	mu      sync.RWMutex
	secret  []byte
	entries map[string]sealed
	rand    io.Reader
}

// New はVaultを生成する。secretは鍵導出の入力鍵素材で、空であってはならない。
func New(secret []byte) (*Vault, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("keyvault secret is required")
	}
	return &Vault{
		secret:  append([]byte(nil), secret...),
		entries: make(map[string]sealed),
		rand:    rand.Reader,
	}, nil
}

// Store はidentifierに対応する秘密鍵を封印して保存する。
// 同じidentifierが既にある場合は上書きする。
func (v *Vault) Store(identifier string, priv ed25519.PrivateKey) error {
	if len(priv) != ed25519.PrivateKeySize {
		return fmt.Errorf("%w: private key has %d bytes", model.ErrInvalidKeyLength, len(priv))
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(v.rand, salt); err != nil {
		return fmt.Errorf("failed to read salt: %w", err)
	}
	aead, err := v.aead(salt, identifier)
	if err != nil {
		return err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(v.rand, nonce); err != nil {
		return fmt.Errorf("failed to read nonce: %w", err)
	}
	ct := aead.Seal(nil, nonce, priv.Seed(), []byte(identifier))

	v.mu.Lock()
	v.entries[identifier] = sealed{salt: salt, nonce: nonce, ciphertext: ct}
	v.mu.Unlock()
	return nil
}

// Has はidentifierの秘密鍵が保持されているかを返す。
func (v *Vault) Has(identifier string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.entries[identifier]
	return ok
}

// Sign はidentifierの秘密鍵でmessageに署名する。
// 保持していない場合はmodel.ErrKeyNotRetainedを返す。
func (v *Vault) Sign(identifier string, message []byte) ([]byte, error) {
	v.mu.RLock()
	entry, ok := v.entries[identifier]
	v.mu.RUnlock()
	if !ok {
		return nil, model.ErrKeyNotRetained
	}

	aead, err := v.aead(entry.salt, identifier)
	if err != nil {
		return nil, err
	}
	seed, err := aead.Open(nil, entry.nonce, entry.ciphertext, []byte(identifier))
	if err != nil {
		return nil, ErrAuthFailed
	}
	defer zeroBytes(seed)

	priv := ed25519.NewKeyFromSeed(seed)
	defer zeroBytes(priv)
	return ed25519.Sign(priv, message), nil
}

// Forget はidentifierの秘密鍵を破棄する。
func (v *Vault) Forget(identifier string) {
	v.mu.Lock()
	delete(v.entries, identifier)
	v.mu.Unlock()
}

// Len は保持している鍵の数を返す。
func (v *Vault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}

func (v *Vault) aead(salt []byte, identifier string) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	defer zeroBytes(key)
	reader := hkdf.New(sha256.New, v.secret, salt, []byte(hkdfInfo+"/"+identifier))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive vault key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
