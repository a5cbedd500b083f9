// Package emaildigest はメールアドレスの一方向ダイジェストを提供する。
// バインディングストアはこのダイジェストのみを保存し、平文のメールアドレスは保持しない。
package emaildigest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/hitoshi/emaildid/internal/model"
)

// Size はダイジェストの16進文字列長。
const Size = sha256.Size * 2

// Normalize はメールアドレスを小文字化し、前後の空白を除去する。
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Digest は正規化したメールアドレスのSHA-256を小文字16進で返す。
// 正規化後に@を含まない場合はmodel.ErrInvalidEmailを返す。
func Digest(email string) (string, error) {
	normalized := Normalize(email)
	if !strings.Contains(normalized, "@") {
		return "", fmt.Errorf("%w: missing @", model.ErrInvalidEmail)
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]), nil
}

// IsDigest はsが64文字の小文字16進文字列かどうかを判定する。
func IsDigest(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Mask はログや画面表示用にメールアドレスのローカル部を伏せる。
// "user@example.com" は "u***@example.com" になる。
func Mask(email string) string {
	normalized := Normalize(email)
	at := strings.LastIndex(normalized, "@")
	if at <= 0 {
		return "***"
	}
	return normalized[:1] + "***" + normalized[at:]
}
