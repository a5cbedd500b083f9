// Package binding はメールダイジェストとDIDの対応（バインディング）を扱う。
// バインディングストアはベストエフォートの書き込み先であり、
// 書き込みの遅延や失敗が登録フローを止めることはない。
package binding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/emaildid/internal/did"
	"github.com/hitoshi/emaildid/internal/emaildigest"
	"github.com/hitoshi/emaildid/internal/metrics"
	"github.com/hitoshi/emaildid/internal/model"
)

// DefaultTimeout は1件の書き込みに許す時間のデフォルト値。
const DefaultTimeout = 5 * time.Second

// Store はバインディングの保存先インターフェース。
// repository.PostgresBindingRepo / MemoryBindingRepo / NopBindingRepo が満たす。
type Store interface {
	Put(ctx context.Context, emailDigest, identifier string) error
	Get(ctx context.Context, emailDigest string) (string, error)
}

// Record はバインディング1件を表す。
type Record struct {
	EmailDigest string `json:"email_digest"`
	Identifier  string `json:"did"`
}

// Validate はレコードの形式を検証する。
// ダイジェストが64文字の小文字16進でない場合、または識別子がdid:key形式でない場合は
// model.ErrBindingを返す。
func (r Record) Validate() error {
	if !emaildigest.IsDigest(r.EmailDigest) {
		return fmt.Errorf("%w: email digest must be %d lowercase hex characters", model.ErrBinding, emaildigest.Size)
	}
	if err := did.Validate(r.Identifier); err != nil {
		return fmt.Errorf("%w: %v", model.ErrBinding, err)
	}
	return nil
}

// Writer はバインディングを非同期に書き込む。
// Writeは即座に戻り、結果はログとメトリクスにのみ残る。
type Writer struct {
	store   Store
	timeout time.Duration
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	wg      sync.WaitGroup
}

// NewWriter はWriterを生成する。timeoutが0以下の場合はDefaultTimeoutを使用する。
func NewWriter(store Store, timeout time.Duration, logger *slog.Logger, m metrics.MetricsCollector) *Writer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Writer{
		store:   store,
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

// Write はレコードをバックグラウンドで書き込む。エラーは返さない。
func (w *Writer) Write(rec Record) {
	if err := rec.Validate(); err != nil {
		w.logger.Warn("binding record rejected",
			slog.String("email_digest", rec.EmailDigest),
			slog.String("error", err.Error()),
		)
		w.metrics.RecordBindingWrite(false)
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		if err := w.store.Put(ctx, rec.EmailDigest, rec.Identifier); err != nil {
			w.logger.Warn("binding write failed",
				slog.String("email_digest", rec.EmailDigest),
				slog.String("identifier", rec.Identifier),
				slog.String("error", fmt.Errorf("%w: %w", model.ErrBinding, err).Error()),
			)
			w.metrics.RecordBindingWrite(false)
			return
		}

		w.logger.Info("binding stored",
			slog.String("email_digest", rec.EmailDigest),
			slog.String("identifier", rec.Identifier),
		)
		w.metrics.RecordBindingWrite(true)
	}()
}

// Wait は実行中の書き込みがすべて終わるまで待つ。シャットダウン時とテストで使う。
func (w *Writer) Wait() {
	w.wg.Wait()
}

// Lookup はメールダイジェストに対応するバインディングを取得する。
// ダイジェストの形式が不正な場合はmodel.ErrBinding、
// 見つからない場合はmodel.ErrNotFoundを返す。
func Lookup(ctx context.Context, store Store, emailDigest string) (Record, error) {
	if !emaildigest.IsDigest(emailDigest) {
		return Record{}, fmt.Errorf("%w: email digest must be %d lowercase hex characters", model.ErrBinding, emaildigest.Size)
	}
	identifier, err := store.Get(ctx, emailDigest)
	if err != nil {
		return Record{}, err
	}
	return Record{EmailDigest: emailDigest, Identifier: identifier}, nil
}
