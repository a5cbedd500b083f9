package verification

import (
	"sync"
	"time"
)

// Registry は登録IDごとのSessionを管理する。
// 利用者ごとに独立したSessionを払い出し、プロセス全体で1つの状態を共有しない。
type Registry struct {
	deps Dependencies

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry はRegistryを生成する。depsは新しいSessionすべてに渡される。
func NewRegistry(deps Dependencies) *Registry {
	return &Registry{
		deps:     deps.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate はidに対応するSessionを返す。存在しない場合は新規に作成する。
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := NewSession(r.deps)
	r.sessions[id] = s
	return s
}

// Get はidに対応するSessionを返す。
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	return s, ok
}

// Delete はSessionを破棄する。送信中であれば中断する。
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Sweep は最終操作からmaxIdle以上経過したSessionを破棄し、破棄した件数を返す。
// 送信中のSessionは対象外。
func (r *Registry) Sweep(maxIdle time.Duration) int {
	now := r.deps.Clock()

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		lastActive, sending := s.idleSince()
		if sending || now.Sub(lastActive) < maxIdle {
			continue
		}
		expired = append(expired, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// Len は管理中のSession数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
