// Package store holds the in-process implementation of the rate-limit and
// session state consumed by the use cases. It is soft state: entries are
// lost on restart and, when each invocation runs in a separate instance,
// the maps are not shared at all. Multi-instance deployments should use the
// DynamoDB-backed repository instead.
package store

import (
	"context"
	"sync"
	"time"

	"studio-relay/internal/domain"
)

const (
	// DefaultWindow and DefaultCapacity implement the soft throttle of ten
	// requests per identity per minute.
	DefaultWindow   = time.Minute
	DefaultCapacity = 10

	// DefaultSessionTTL is how long an idle session survives before a sweep
	// removes it.
	DefaultSessionTTL = 24 * time.Hour
)

type rateEntry struct {
	windowStart time.Time
	count       int
}

// Memory is a mutex-guarded map store for rate windows and sessions. The
// lock makes per-key updates atomic under concurrent invocations from the
// same identity.
type Memory struct {
	window     time.Duration
	capacity   int
	sessionTTL time.Duration

	mu       sync.Mutex
	rates    map[string]*rateEntry
	sessions map[string]*domain.Session
}

// Option adjusts a Memory store; used mostly by tests.
type Option func(*Memory)

func WithWindow(window time.Duration, capacity int) Option {
	return func(m *Memory) {
		if window > 0 {
			m.window = window
		}
		if capacity > 0 {
			m.capacity = capacity
		}
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(m *Memory) {
		if ttl > 0 {
			m.sessionTTL = ttl
		}
	}
}

// NewMemory creates an empty store with default window, capacity and TTL.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		window:     DefaultWindow,
		capacity:   DefaultCapacity,
		sessionTTL: DefaultSessionTTL,
		rates:      make(map[string]*rateEntry),
		sessions:   make(map[string]*domain.Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allow reports whether identity may make another request at now. The first
// request in a window always passes; once the window holds the configured
// capacity the count stops growing and further requests are rejected until
// the window expires.
func (m *Memory) Allow(_ context.Context, identity string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.rates[identity]
	if !ok || now.Sub(entry.windowStart) >= m.window {
		m.rates[identity] = &rateEntry{windowStart: now, count: 1}
		return true, nil
	}
	if entry.count >= m.capacity {
		return false, nil
	}
	entry.count++
	return true, nil
}

// Touch returns identity's session updated with one inbound message,
// creating the session on first contact. Expired sessions are replaced
// rather than resurrected, so a stale entry that outlived a sweep interval
// does not leak old history into a new conversation.
func (m *Memory) Touch(_ context.Context, identity, displayName, text string, now time.Time) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[identity]
	if !ok || sess.Expired(now, m.sessionTTL) {
		sess = domain.NewSession(identity, displayName, now)
		m.sessions[identity] = sess
	}
	if displayName != "" {
		sess.DisplayName = displayName
	}
	sess.Record(text, now)
	return *sess, nil
}

// Sweep drops sessions idle past the TTL and rate windows that have
// elapsed. Housekeeping only: lookups already ignore stale entries, sweeping
// just returns the memory.
func (m *Memory) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for identity, sess := range m.sessions {
		if sess.Expired(now, m.sessionTTL) {
			delete(m.sessions, identity)
			removed++
		}
	}
	// Strictly past the window: Allow already resets an entry at exactly one
	// window elapsed, so sweeping only reclaims entries beyond it.
	for identity, entry := range m.rates {
		if now.Sub(entry.windowStart) > m.window {
			delete(m.rates, identity)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of live sessions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
