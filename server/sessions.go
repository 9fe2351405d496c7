package server

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chazu/replkit/evaluator"
)

// Session is one client's evaluator together with the output its
// fragments have printed since the last evaluation.
type Session struct {
	ID   string
	Name string
	Eval *evaluator.Full

	out      *outputBuffer
	lastUsed atomic.Int64
}

func (s *Session) touch() { s.lastUsed.Store(time.Now().UnixNano()) }

func (s *Session) idleSince(cutoff time.Time) bool {
	return s.lastUsed.Load() < cutoff.UnixNano()
}

// outputBuffer collects Stdout and Stderr of a session's fragments.
type outputBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// take returns everything written so far and empties the buffer.
func (b *outputBuffer) take() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	b.buf.Reset()
	return s
}

// SessionStore manages evaluation sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	nextID   atomic.Uint64
	opts     evaluator.Options
}

// NewSessionStore creates a session store whose sessions are built from
// opts. Stdout and Stderr in opts are replaced per session.
func NewSessionStore(opts evaluator.Options) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		opts:     opts,
	}
}

// Create creates a new session with an optional name.
func (s *SessionStore) Create(name string) (*Session, error) {
	id := fmt.Sprintf("s-%d", s.nextID.Add(1))

	out := &outputBuffer{}
	opts := s.opts
	opts.Stdout = out
	opts.Stderr = out

	eval, err := evaluator.NewFull(opts)
	if err != nil {
		return nil, fmt.Errorf("creating evaluator for session %s: %w", id, err)
	}

	session := &Session{
		ID:   id,
		Name: name,
		Eval: eval,
		out:  out,
	}
	session.touch()

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	log.Debugf("session %s created", id)
	return session, nil
}

// Get retrieves a session by ID and marks it as used.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if ok {
		session.touch()
	}
	return session, ok
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Destroy removes a session and closes its evaluator. It reports whether
// the session existed.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		s.release(session)
	}
	return ok
}

// Sweep destroys sessions that haven't been used within the TTL.
func (s *SessionStore) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	var idle []*Session
	s.mu.Lock()
	for id, session := range s.sessions {
		if session.idleSince(cutoff) {
			idle = append(idle, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	// Closing waits for a running evaluation, so it happens outside the lock.
	for _, session := range idle {
		log.Infof("session %s expired", session.ID)
		s.release(session)
	}
	return len(idle)
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *SessionStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// CloseAll destroys every session.
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, session := range all {
		s.release(session)
	}
}

func (s *SessionStore) release(session *Session) {
	if err := session.Eval.Close(); err != nil && !errors.Is(err, evaluator.ErrClosed) {
		log.Warningf("closing session %s: %v", session.ID, err)
	}
}
