package handler

import (
	"github.com/hitoshi/emaildid/internal/verification"
)

// RegistryAdapter は verification.Registry を SessionRegistry に適合させるアダプタ。
type RegistryAdapter struct {
	registry *verification.Registry
}

// NewRegistryAdapter はRegistryAdapterを生成する。
func NewRegistryAdapter(registry *verification.Registry) *RegistryAdapter {
	return &RegistryAdapter{registry: registry}
}

// Session は登録IDに対応するセッションを返す。なければ作成する。
func (a *RegistryAdapter) Session(registrationID string) RegistrationSession {
	return a.registry.GetOrCreate(registrationID)
}

// Lookup は既存のセッションを返す。作成はしない。
func (a *RegistryAdapter) Lookup(registrationID string) (RegistrationSession, bool) {
	s, ok := a.registry.Get(registrationID)
	if !ok {
		return nil, false
	}
	return s, true
}

// compile-time interface check
var _ SessionRegistry = (*RegistryAdapter)(nil)
var _ RegistrationSession = (*verification.Session)(nil)
