// Package conversation drives the per-phone booking dialogue over WhatsApp.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// State is the conversation position for one phone number.
type State string

const (
	StateGreeting             State = "greeting"
	StateMenu                 State = "menu"
	StateChoosingProfessional State = "choosing_professional"
	StateChoosingDay          State = "choosing_day"
	StateWaitingDate          State = "waiting_date"
	StateWaitingTime          State = "waiting_time"
	StateWaitingProfessional  State = "waiting_professional"
	StateWaitingName          State = "waiting_name"
	StateConfirming           State = "confirming"
	StateCanceling            State = "canceling"
)

// SessionTTL is how long an idle session survives before it is purged.
const SessionTTL = 10 * time.Minute

// ProfessionalOption is a menu entry for picking a professional.
type ProfessionalOption struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// DayOption is a menu entry for picking a day.
type DayOption struct {
	Date    string `json:"date"`
	Label   string `json:"label"`
	Display string `json:"display"`
}

// CancelOption is a menu entry for picking an appointment to cancel.
type CancelOption struct {
	ID               uuid.UUID `json:"id"`
	Date             string    `json:"date"`
	Time             string    `json:"time"`
	ProfessionalName string    `json:"professional_name"`
}

// Scratch carries the partial booking across states. It is cleared on
// completion, cancellation, or error.
type Scratch struct {
	Name             string               `json:"name,omitempty"`
	Date             string               `json:"date,omitempty"`
	DateDisplay      string               `json:"date_display,omitempty"`
	Time             string               `json:"time,omitempty"`
	ProfessionalID   *uuid.UUID           `json:"professional_id,omitempty"`
	ProfessionalName string               `json:"professional_name,omitempty"`
	SpecificPro      bool                 `json:"specific_pro,omitempty"`
	Professionals    []ProfessionalOption `json:"professionals,omitempty"`
	Days             []DayOption          `json:"days,omitempty"`
	Times            []string             `json:"times,omitempty"`
	Cancelable       []CancelOption       `json:"cancelable,omitempty"`
}

// Session is one phone number's dialogue position plus scratch data.
type Session struct {
	State      State     `json:"state"`
	Data       Scratch   `json:"data"`
	LastActive time.Time `json:"last_active"`
}

// NewSession starts a session at the greeting state.
func NewSession(now time.Time) *Session {
	return &Session{State: StateGreeting, LastActive: now}
}

// Reset drops progress and returns to the greeting state.
func (s *Session) Reset() {
	s.State = StateGreeting
	s.Data = Scratch{}
}

// SessionStore persists sessions between messages.
type SessionStore interface {
	Get(ctx context.Context, phone string) (*Session, error)
	Put(ctx context.Context, phone string, sess *Session) error
	Delete(ctx context.Context, phone string) error
	// Sweep purges sessions idle longer than SessionTTL. Backends with
	// native expiry may make it a no-op.
	Sweep(ctx context.Context, now time.Time) error
}

// MemoryStore keeps sessions in a mutex-guarded map. Suitable for a single
// process; the sweep runs cooperatively from the engine on every message.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      SessionTTL,
	}
}

// WithTTL overrides the idle timeout, mainly for tests.
func (m *MemoryStore) WithTTL(ttl time.Duration) *MemoryStore {
	if ttl > 0 {
		m.ttl = ttl
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, phone string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[phone]
	if !ok {
		return nil, nil
	}
	copied := *sess
	return &copied, nil
}

func (m *MemoryStore) Put(_ context.Context, phone string, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *sess
	m.sessions[phone] = &copied
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, phone)
	return nil
}

func (m *MemoryStore) Sweep(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for phone, sess := range m.sessions {
		if now.Sub(sess.LastActive) > m.ttl {
			delete(m.sessions, phone)
		}
	}
	return nil
}

// RedisStore keeps sessions in Redis with a TTL, so expiry needs no sweep
// and sessions survive process restarts.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &RedisStore{client: client, ttl: SessionTTL}
}

func (r *RedisStore) WithTTL(ttl time.Duration) *RedisStore {
	if ttl > 0 {
		r.ttl = ttl
	}
	return r
}

func (r *RedisStore) Get(ctx context.Context, phone string) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKey(phone)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &sess, nil
}

func (r *RedisStore) Put(ctx context.Context, phone string, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(phone), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, phone string) error {
	if err := r.client.Del(ctx, sessionKey(phone)).Err(); err != nil {
		return fmt.Errorf("conversation: failed to delete session: %w", err)
	}
	return nil
}

// Sweep is a no-op: Redis expires keys on its own.
func (r *RedisStore) Sweep(context.Context, time.Time) error { return nil }

func sessionKey(phone string) string {
	return fmt.Sprintf("session:%s", phone)
}
