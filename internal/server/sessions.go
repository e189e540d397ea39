// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/pdiddy/proposal-engine/internal/engine"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

var (
	// ErrUnknownSession is returned for ids that were never started or have expired.
	ErrUnknownSession = errors.New("server: unknown session")

	// ErrAlreadyAnswered is returned for a second clarification answer.
	ErrAlreadyAnswered = errors.New("server: session already answered")

	// ErrClarificationClosed is returned for an answer that arrives after
	// the session stopped waiting for one.
	ErrClarificationClosed = errors.New("server: session no longer accepts clarification")
)

// Status is the externally visible state of a session.
type Status struct {
	SessionID    string              `json:"sessionId"`
	Topic        string              `json:"topic"`
	Status       types.SessionStatus `json:"status"`
	Step         int                 `json:"step,omitempty"`
	Stage        string              `json:"stage,omitempty"`
	Questions    []string            `json:"questions,omitempty"`
	Answered     bool                `json:"answered"`
	DocumentPath string              `json:"documentPath,omitempty"`
	Overall      float64             `json:"overall,omitempty"`
	Error        string              `json:"error,omitempty"`
	StartedAt    time.Time           `json:"startedAt"`
	FinishedAt   *time.Time          `json:"finishedAt,omitempty"`
}

// record is the registry's view of one session. The engine owns the
// session itself; the record only holds copies made under mu.
type record struct {
	mu      sync.Mutex
	status  Status
	answers chan string

	// closed is set once the session can no longer use an answer.
	closed bool
}

func (r *record) snapshot() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status
	st.Questions = append([]string(nil), r.status.Questions...)
	return st
}

// Sessions tracks running and recently finished sessions. Entries expire
// ttl after their last update. It implements engine.Clarifier.
type Sessions struct {
	store *cache.Cache
	now   func() time.Time
}

// NewSessions returns a registry whose entries live for ttl.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		store: cache.New(ttl, ttl/6),
		now:   time.Now,
	}
}

// Start registers a new running session.
func (s *Sessions) Start(id, topic string) {
	s.store.SetDefault(id, &record{
		status: Status{
			SessionID: id,
			Topic:     topic,
			Status:    types.StatusRunning,
			StartedAt: s.now(),
		},
		answers: make(chan string, 1),
	})
}

func (s *Sessions) get(id string) (*record, bool) {
	v, ok := s.store.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*record), true
}

// Get returns a snapshot of the session's status.
func (s *Sessions) Get(id string) (Status, error) {
	r, ok := s.get(id)
	if !ok {
		return Status{}, ErrUnknownSession
	}
	return r.snapshot(), nil
}

// Finish copies the outcome of a completed run into the registry and
// restarts the entry's expiry.
func (s *Sessions) Finish(sess *types.Session) {
	r, ok := s.get(sess.ID)
	if !ok {
		return
	}
	now := s.now()
	r.mu.Lock()
	r.status.Status = sess.Status
	r.status.DocumentPath = sess.DocumentPath
	r.status.Error = sess.Err
	if sess.Review != nil {
		r.status.Overall = sess.Review.Overall
	}
	r.status.FinishedAt = &now
	r.closed = true
	r.mu.Unlock()
	s.store.SetDefault(sess.ID, r)
}

// Answer delivers the user's clarification. A second answer for the same
// session is rejected, as is one that arrives after the clarification wait
// ended or the session finished.
func (s *Sessions) Answer(id, answer string) error {
	r, ok := s.get(id)
	if !ok {
		return ErrUnknownSession
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Answered {
		return ErrAlreadyAnswered
	}
	if r.closed {
		return ErrClarificationClosed
	}
	r.status.Answered = true
	r.answers <- answer
	return nil
}

// Await blocks until an answer for sessionID arrives or ctx is done.
func (s *Sessions) Await(ctx context.Context, sessionID string, questions []string) (string, error) {
	r, ok := s.get(sessionID)
	if !ok {
		return "", ErrUnknownSession
	}
	r.mu.Lock()
	r.status.Questions = append([]string(nil), questions...)
	r.mu.Unlock()

	select {
	case a := <-r.answers:
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		return a, nil
	case <-ctx.Done():
	}

	// An answer accepted while the deadline fired is still delivered.
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	select {
	case a := <-r.answers:
		return a, nil
	default:
		return "", ctx.Err()
	}
}

// Track wraps sink so the registry records the latest step of each session.
func (s *Sessions) Track(sink engine.Sink) engine.Sink {
	return trackingSink{sessions: s, next: sink}
}

type trackingSink struct {
	sessions *Sessions
	next     engine.Sink
}

func (t trackingSink) Push(msg types.StreamMessage) bool {
	if r, ok := t.sessions.get(msg.SessionID); ok {
		r.mu.Lock()
		r.status.Step = msg.Step
		r.status.Stage = msg.Stage
		r.mu.Unlock()
	}
	return t.next.Push(msg)
}

// Count returns the number of live entries.
func (s *Sessions) Count() int {
	return s.store.ItemCount()
}
