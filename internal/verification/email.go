package verification

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hitoshi/emaildid/internal/model"
)

// maxEmailLength はRFC 5321のパス長上限から求めたアドレス長の上限。
const maxEmailLength = 254

// ValidateEmail はメールアドレスとして妥当な形かどうかを検証する。
// 前後の空白は無視する。@がちょうど1つで、ローカル部とドメイン部が空でなく、
// 内部に空白を含まないことを要求する。
func ValidateEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", model.ErrInvalidEmail)
	}
	if len(trimmed) > maxEmailLength {
		return fmt.Errorf("%w: too long", model.ErrInvalidEmail)
	}
	if strings.IndexFunc(trimmed, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: contains whitespace", model.ErrInvalidEmail)
	}
	local, domain, ok := strings.Cut(trimmed, "@")
	if !ok {
		return fmt.Errorf("%w: missing @", model.ErrInvalidEmail)
	}
	if strings.Contains(domain, "@") {
		return fmt.Errorf("%w: multiple @", model.ErrInvalidEmail)
	}
	if local == "" || domain == "" {
		return fmt.Errorf("%w: empty local or domain part", model.ErrInvalidEmail)
	}
	return nil
}
