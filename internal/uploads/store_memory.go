package uploads

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type memSession struct {
	meta    Meta
	chunks  []string
	filled  int
	expires time.Time
}

// MemoryStore is the single-process SessionStore. Sessions idle for longer than the TTL are
// treated as absent and removed by Run.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memSession
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, sessionID string, meta Meta, index int, data string) (Meta, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s, ok := m.sessions[sessionID]
	if ok && now.After(s.expires) {
		delete(m.sessions, sessionID)
		ok = false
	}
	if !ok {
		if meta.TotalChunks <= 0 {
			return Meta{}, 0, ErrSessionUnknown
		}
		if index < 0 || index >= meta.TotalChunks {
			return Meta{}, 0, ErrChunkOutOfRange
		}
		if meta.CreatedAt.IsZero() {
			meta.CreatedAt = now
		}
		s = &memSession{meta: meta, chunks: make([]string, meta.TotalChunks)}
		m.sessions[sessionID] = s
	}
	if err := checkChunk(s.meta, meta.TotalChunks, index); err != nil {
		return Meta{}, 0, err
	}

	if s.chunks[index] == "" {
		s.filled++
	}
	s.chunks[index] = data
	s.expires = now.Add(m.ttl)
	return s.meta, s.filled, nil
}

func (m *MemoryStore) Take(_ context.Context, sessionID string) (Meta, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Meta{}, nil, ErrSessionUnknown
	}
	delete(m.sessions, sessionID)
	return s.meta, s.chunks, nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for id, s := range m.sessions {
		if now.After(s.expires) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps on every tick until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, every time.Duration, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.Infow("expired upload sessions removed", "count", n)
			}
		}
	}
}
