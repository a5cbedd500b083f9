package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/emaildid/internal/middleware"
	"github.com/hitoshi/emaildid/internal/model"
)

// --- モック定義 ---

// mockSession はRegistrationSessionのモック実装。
type mockSession struct {
	submitEmailFn func(ctx context.Context, email string) error
	submitCodeFn  func(ctx context.Context, candidate string) (string, error)
	snapshot      model.RegistrationStatus
	identifier    string
	canceled      bool
}

func (m *mockSession) SubmitEmail(ctx context.Context, email string) error {
	if m.submitEmailFn != nil {
		return m.submitEmailFn(ctx, email)
	}
	return nil
}

func (m *mockSession) SubmitCode(ctx context.Context, candidate string) (string, error) {
	if m.submitCodeFn != nil {
		return m.submitCodeFn(ctx, candidate)
	}
	return "", nil
}

func (m *mockSession) Cancel() { m.canceled = true }

func (m *mockSession) Snapshot() model.RegistrationStatus { return m.snapshot }

func (m *mockSession) Identifier() (string, bool) { return m.identifier, m.identifier != "" }

// mockRegistry はSessionRegistryのモック実装。
type mockRegistry struct {
	sessions map[string]*mockSession
	created  []string
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{sessions: make(map[string]*mockSession)}
}

func (m *mockRegistry) Session(id string) RegistrationSession {
	s, ok := m.sessions[id]
	if !ok {
		s = &mockSession{snapshot: model.RegistrationStatus{State: model.RegistrationIdle}}
		m.sessions[id] = s
		m.created = append(m.created, id)
	}
	return s
}

func (m *mockRegistry) Lookup(id string) (RegistrationSession, bool) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return s, true
}

// --- ヘルパー ---

// withRegistrationID はテスト用にコンテキストへ登録IDを注入するヘルパー。
func withRegistrationID(r *http.Request, id string) *http.Request {
	return r.WithContext(middleware.ContextWithRegistrationID(r.Context(), id))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}
