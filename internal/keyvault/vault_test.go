package keyvault

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/hitoshi/emaildid/internal/model"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New([]byte("test-vault-secret"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return v
}

func TestNew_RequiresSecret(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestStoreAndSign_ProducesVerifiableSignature(t *testing.T) {
	v := newTestVault(t)
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	if err := v.Store("did:key:zTest", priv); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if !v.Has("did:key:zTest") {
		t.Fatal("Has() = false after Store")
	}

	msg := []byte("sign me")
	sig, err := v.Sign("did:key:zTest", msg)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !ed25519.Verify(pub, msg, sig) {
		t.Error("signature does not verify with the original public key")
	}
}

func TestStore_DoesNotKeepPlaintextSeed(t *testing.T) {
	v := newTestVault(t)
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	if err := v.Store("did:key:zSeed", priv); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	entry := v.entries["did:key:zSeed"]
	if bytes.Contains(entry.ciphertext, priv.Seed()) {
		t.Error("ciphertext contains the plaintext seed")
	}
}

func TestSign_UnknownIdentifier(t *testing.T) {
	v := newTestVault(t)
	_, err := v.Sign("did:key:zMissing", []byte("x"))
	if !errors.Is(err, model.ErrKeyNotRetained) {
		t.Errorf("Sign() error = %v, want ErrKeyNotRetained", err)
	}
}

func TestSign_EntryBoundToIdentifier(t *testing.T) {
	v := newTestVault(t)
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	if err := v.Store("did:key:zA", priv); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	// 別のDIDに付け替えたエントリは認証に失敗すること
	v.mu.Lock()
	v.entries["did:key:zB"] = v.entries["did:key:zA"]
	v.mu.Unlock()

	if _, err := v.Sign("did:key:zB", []byte("x")); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Sign() error = %v, want ErrAuthFailed", err)
	}
}

func TestStore_RejectsWrongLength(t *testing.T) {
	v := newTestVault(t)
	err := v.Store("did:key:zShort", ed25519.PrivateKey(make([]byte, 10)))
	if !errors.Is(err, model.ErrInvalidKeyLength) {
		t.Errorf("Store() error = %v, want ErrInvalidKeyLength", err)
	}
}

func TestForget(t *testing.T) {
	v := newTestVault(t)
	_, priv, _ := ed25519.GenerateKey(rand.Reader)
	if err := v.Store("did:key:zF", priv); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if v.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", v.Len())
	}
	v.Forget("did:key:zF")
	if v.Has("did:key:zF") || v.Len() != 0 {
		t.Error("key should be forgotten")
	}
}
