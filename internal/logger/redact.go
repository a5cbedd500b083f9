package logger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/emaildid/internal/emaildigest"
)

// RedactedValue は秘匿化された属性値の置換文字列。
const RedactedValue = "[REDACTED]"

// 値を完全に伏せるキー。
var sensitiveKeys = map[string]struct{}{
	"code":      {},
	"candidate": {},
}

// 値を完全に伏せるキーの部分文字列。
var sensitiveKeyParts = []string{"verification_code", "secret", "private", "seed", "token", "password", "api_key", "authorization"}

// RedactingHandler はslog.Handlerをラップし、属性を秘匿化してから次のハンドラーに渡す。
//   - キーに "email" を含む属性は emaildigest.Mask でマスクする
//   - 確認コードや鍵、シークレットに該当するキーは RedactedValue に置換する
type RedactingHandler struct {
	next slog.Handler
}

// NewRedactingHandler はRedactingHandlerを生成する。
func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(RedactAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		redacted = append(redacted, RedactAttr(a))
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

// RedactAttr は1つの属性を秘匿化する。グループは再帰的に処理する。
func RedactAttr(attr slog.Attr) slog.Attr {
	key := strings.ToLower(attr.Key)

	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		out := make([]any, 0, len(group))
		for _, a := range group {
			out = append(out, RedactAttr(a))
		}
		return slog.Group(attr.Key, out...)
	}

	// email_digest はハッシュ値なのでそのまま残す
	if strings.Contains(key, "email") && !strings.Contains(key, "digest") {
		return slog.String(attr.Key, emaildigest.Mask(attr.Value.Resolve().String()))
	}
	if _, ok := sensitiveKeys[key]; ok {
		return slog.String(attr.Key, RedactedValue)
	}
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return slog.String(attr.Key, RedactedValue)
		}
	}
	return attr
}

// compile-time interface check
var _ slog.Handler = (*RedactingHandler)(nil)
