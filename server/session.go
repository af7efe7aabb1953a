package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ESMP/core/filter"
	"ESMP/logger"

	"github.com/google/uuid"
)

// SessionCookie carries the browser session id.
const SessionCookie = "esmp_session"

// Session is one browser's filter panel.
type Session struct {
	ID string

	mu       sync.Mutex
	filters  *filter.State
	lastSeen time.Time
}

// Filters runs fn with the session's filter state locked.
func (s *Session) Filters(fn func(st *filter.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.filters)
}

// SessionStore keeps sessions in memory and expires idle ones.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idle     time.Duration
	now      func() time.Time
	onExpire func(id string)
}

// NewSessionStore creates a store whose sessions expire after idle.
func NewSessionStore(idle time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		idle:     idle,
		now:      time.Now,
	}
}

// OnExpire registers fn to run with the id of every swept session.
func (s *SessionStore) OnExpire(fn func(id string)) {
	s.mu.Lock()
	s.onExpire = fn
	s.mu.Unlock()
}

// Lookup returns the caller's existing session without starting one.
func (s *SessionStore) Lookup(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[c.Value]
	if ok {
		sess.lastSeen = s.now()
	}
	return sess, ok
}

// Session returns the caller's session, starting one and setting the
// cookie when the request carries none or an unknown id.
func (s *SessionStore) Session(w http.ResponseWriter, r *http.Request) *Session {
	now := s.now()

	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			s.mu.Lock()
			sess, ok := s.sessions[c.Value]
			if ok {
				sess.lastSeen = now
			}
			s.mu.Unlock()
			if ok {
				return sess
			}
		}
	}

	sess := &Session{ID: uuid.NewString(), filters: filter.NewState(), lastSeen: now}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// Len is the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the store's limit.
func (s *SessionStore) Sweep() int {
	cutoff := s.now().Add(-s.idle)
	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	onExpire := s.onExpire
	s.mu.Unlock()

	if onExpire != nil {
		for _, id := range expired {
			onExpire(id)
		}
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done.
func (s *SessionStore) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug("expired idle sessions", logger.Int("count", n))
			}
		}
	}
}
