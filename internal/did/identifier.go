package did

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/hitoshi/emaildid/internal/model"
	"github.com/mr-tron/base58"
)

const (
	// Scheme はdid:key識別子の固定プレフィックス。
	Scheme = "did:key:"
	// multibaseBase58BTC はbase58btcを示すmultibaseプレフィックス。
	multibaseBase58BTC = 'z'
)

// ed25519Multicodec はEd25519公開鍵のmulticodec値(0xed)のvarint表現。
var ed25519Multicodec = []byte{0xed, 0x01}

// Encode はEd25519公開鍵からdid:key識別子を導出する。
// 同じ公開鍵からは常に同じ文字列を返す。
// 公開鍵長が32バイトでない場合はmodel.ErrInvalidKeyLengthを返す。
func Encode(publicKey []byte) (string, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: got %d bytes, want %d", model.ErrInvalidKeyLength, len(publicKey), ed25519.PublicKeySize)
	}
	prefixed := make([]byte, 0, len(ed25519Multicodec)+len(publicKey))
	prefixed = append(prefixed, ed25519Multicodec...)
	prefixed = append(prefixed, publicKey...)
	return Scheme + string(multibaseBase58BTC) + base58.Encode(prefixed), nil
}

// Decode はdid:key識別子から公開鍵を復元する。Encodeの逆変換。
func Decode(identifier string) (ed25519.PublicKey, error) {
	if err := Validate(identifier); err != nil {
		return nil, err
	}
	mb := strings.TrimPrefix(identifier, Scheme)
	if mb[0] != multibaseBase58BTC {
		return nil, fmt.Errorf("%w: unsupported multibase prefix %q", model.ErrInvalidIdentifier, mb[0])
	}
	raw, err := base58.Decode(mb[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidIdentifier, err)
	}
	if !bytes.HasPrefix(raw, ed25519Multicodec) {
		return nil, fmt.Errorf("%w: not an ed25519 public key", model.ErrInvalidIdentifier)
	}
	key := raw[len(ed25519Multicodec):]
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: got %d key bytes", model.ErrInvalidIdentifier, len(key))
	}
	return ed25519.PublicKey(key), nil
}

// Validate はidentifierがdid:key:に続く空でないmultibase文字列かどうかを検証する。
func Validate(identifier string) error {
	if !strings.HasPrefix(identifier, Scheme) {
		return fmt.Errorf("%w: missing %s prefix", model.ErrInvalidIdentifier, Scheme)
	}
	if len(identifier) == len(Scheme) {
		return fmt.Errorf("%w: empty multibase value", model.ErrInvalidIdentifier)
	}
	return nil
}

// FromKeyPair は鍵ペアの公開鍵からdid:key識別子を導出する。
func FromKeyPair(kp KeyPair) (string, error) {
	return Encode(kp.PublicKey)
}

// Verify はidentifierに含まれる公開鍵でsignatureを検証する。
func Verify(identifier string, message, signature []byte) (bool, error) {
	pub, err := Decode(identifier)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, message, signature), nil
}
