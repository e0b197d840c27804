package store

import (
	"context"
	"sync"
	"time"

	"github.com/DoyleJ11/aibird-bridge/internal/engine"
)

// Memory is the Recorder used when no database is configured. It keeps the
// last maxShots shots of each of the last maxSessions sessions. Ended
// sessions are forgotten first.
type Memory struct {
	mu          sync.Mutex
	maxSessions int
	maxShots    int
	sessions    map[string]SessionRecord
	shots       map[string][]ShotRecord
	order       []string // session ids, oldest first
	nextID      uint
	now         func() time.Time
}

// NewMemory returns an empty store. Non-positive limits pick the defaults of
// 1024 sessions and 256 shots per session.
func NewMemory(maxSessions, maxShots int) *Memory {
	if maxSessions <= 0 {
		maxSessions = 1024
	}
	if maxShots <= 0 {
		maxShots = 256
	}
	return &Memory{
		maxSessions: maxSessions,
		maxShots:    maxShots,
		sessions:    make(map[string]SessionRecord),
		shots:       make(map[string][]ShotRecord),
		now:         time.Now,
	}
}

func (m *Memory) OpenSession(ctx context.Context, rec SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.StartedAt.IsZero() {
		rec.StartedAt = m.now()
	}
	if _, ok := m.sessions[rec.ID]; !ok {
		m.order = append(m.order, rec.ID)
	}
	m.sessions[rec.ID] = rec
	for len(m.order) > m.maxSessions {
		m.evict()
	}
	return nil
}

// evict drops the oldest ended session, or the oldest one if all are live.
func (m *Memory) evict() {
	victim := 0
	for i, id := range m.order {
		if m.sessions[id].EndedAt != nil {
			victim = i
			break
		}
	}
	id := m.order[victim]
	m.order = append(m.order[:victim], m.order[victim+1:]...)
	delete(m.sessions, id)
	delete(m.shots, id)
}

func (m *Memory) CloseSession(ctx context.Context, final engine.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[final.ID]
	if !ok {
		return ErrNotFound
	}
	at := m.now()
	rec.EndedAt = &at
	rec.Level = final.Level
	rec.FinalScore = final.Score
	rec.FinalState = int32(final.GameState)
	m.sessions[final.ID] = rec
	return nil
}

// RecordShot returns ErrNotFound for sessions that were never opened or have
// been evicted.
func (m *Memory) RecordShot(ctx context.Context, rec ShotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[rec.SessionID]; !ok {
		return ErrNotFound
	}
	m.nextID++
	rec.ID = m.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	list := append(m.shots[rec.SessionID], rec)
	if len(list) > m.maxShots {
		list = list[len(list)-m.maxShots:]
	}
	m.shots[rec.SessionID] = list
	return nil
}

func (m *Memory) Shots(ctx context.Context, sessionID string, limit int) ([]ShotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	list := m.shots[sessionID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]ShotRecord, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// Session returns a stored session record.
func (m *Memory) Session(id string) (SessionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[id]
	return rec, ok
}

func (m *Memory) Close() error { return nil }
