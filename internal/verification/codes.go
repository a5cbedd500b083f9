package verification

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/hitoshi/emaildid/internal/model"
)

// CodeLength は確認コードの桁数。
const CodeLength = 6

// 確認コードは100000〜999999の一様乱数。先頭が0のコードは発行しない。
var (
	codeMin   = big.NewInt(100000)
	codeRange = big.NewInt(900000)
)

// CodeGenerator は確認コード生成のインターフェース。
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodes は暗号論的乱数源から6桁の確認コードを生成する。
// Randがnilの場合はcrypto/rand.Readerを使用する。
type RandomCodes struct {
	Rand io.Reader
}

// Generate は新しい確認コードを返す。
// 乱数源が利用できない場合はmodel.ErrKeyGenerationを返す。
func (g RandomCodes) Generate() (string, error) {
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}
	n, err := rand.Int(r, codeRange)
	if err != nil {
		return "", fmt.Errorf("%w: sampling verification code: %v", model.ErrKeyGeneration, err)
	}
	n.Add(n, codeMin)
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// compile-time interface check
var _ CodeGenerator = RandomCodes{}
