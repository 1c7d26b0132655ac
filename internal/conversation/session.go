// Package conversation keeps the multi-step chat dialogues of operators.
package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kt-lectures/broadcaster/internal/publishing"
)

// Step is the position of an operator inside a dialogue.
type Step string

const (
	StepIdle            Step = ""
	StepLessonName      Step = "lesson_name"
	StepLessonTitle     Step = "lesson_title"
	StepLessonLecturer  Step = "lesson_lecturer"
	StepLessonTerm      Step = "lesson_term"
	StepLectureNumber   Step = "lecture_number"
	StepCustomTitle     Step = "custom_title"
	StepCustomLabel     Step = "custom_title_label"
	StepExternalVideoID Step = "external_video_id"
)

// Session is the dialogue state of one operator.
type Session struct {
	Step      Step                   `json:"step"`
	Draft     publishing.LessonInput `json:"draft"`
	VideoID   uuid.UUID              `json:"video_id"`
	Platform  publishing.Platform    `json:"platform,omitempty"`
	Title     string                 `json:"title,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// SessionStore holds sessions keyed by operator id. Get returns nil when the
// operator has no open dialogue.
type SessionStore interface {
	Get(ctx context.Context, userID string) (*Session, error)
	Save(ctx context.Context, userID string, s *Session) error
	Delete(ctx context.Context, userID string) error
}

// MemoryStore keeps sessions in process memory. Sessions idle for longer
// than the TTL are forgotten.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a store; ttl <= 0 keeps sessions forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl {
		m.mu.Lock()
		if cur, ok := m.sessions[userID]; ok && cur.UpdatedAt.Equal(s.UpdatedAt) {
			delete(m.sessions, userID)
		}
		m.mu.Unlock()
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, userID string, s *Session) error {
	cp := *s
	cp.UpdatedAt = m.now()
	m.mu.Lock()
	m.sessions[userID] = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}
