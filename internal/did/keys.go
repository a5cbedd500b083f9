// Package did はEd25519鍵ペアの生成とdid:key識別子の導出を提供する。
package did

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/hitoshi/emaildid/internal/model"
)

// KeyPair は署名用のEd25519鍵ペア。
// PrivateKeyはプロセス外に送信しない。
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// Wipe は秘密鍵のバイト列をゼロクリアする。
func (k *KeyPair) Wipe() {
	for i := range k.PrivateKey {
		k.PrivateKey[i] = 0
	}
	k.PrivateKey = nil
}

// KeyGenerator は鍵ペア生成のインターフェース。
// 呼び出しごとに独立した新しい鍵ペアを返す。
type KeyGenerator interface {
	Generate() (KeyPair, error)
}

// Ed25519Generator は乱数源からEd25519鍵ペアを生成する。
// Randがnilの場合はcrypto/rand.Readerを使用する。
type Ed25519Generator struct {
	Rand io.Reader
}

// Generate は新しいEd25519鍵ペアを生成する。
// 乱数源が利用できない場合はmodel.ErrKeyGenerationを返す。
func (g Ed25519Generator) Generate() (KeyPair, error) {
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", model.ErrKeyGeneration, err)
	}
	return KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// GenerateKeyPair はcrypto/randを使って鍵ペアを生成する。
func GenerateKeyPair() (KeyPair, error) {
	return Ed25519Generator{}.Generate()
}

// compile-time interface check
var _ KeyGenerator = Ed25519Generator{}
