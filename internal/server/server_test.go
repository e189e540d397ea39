// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/proposal-engine/internal/engine"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// fakeRunner asks one clarification question, then completes or fails.
type fakeRunner struct {
	sessions *Sessions
	fail     bool

	mu     sync.Mutex
	answer string
	seen   *types.Session
}

func (f *fakeRunner) NewSession(topic string, opts ...engine.SessionOption) *types.Session {
	s := types.NewSession("s-1", topic, 10)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (f *fakeRunner) Run(ctx context.Context, s *types.Session) (*types.Session, error) {
	if s.UserClarification == "" {
		wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		answer, _ := f.sessions.Await(wctx, s.ID, []string{"Which domain?"})
		cancel()
		s.UserClarification = answer
	}
	f.mu.Lock()
	f.answer = s.UserClarification
	f.seen = s
	f.mu.Unlock()

	if f.fail {
		s.Status = types.StatusFailed
		s.Err = "disk full"
		return s, engine.ErrPersist
	}
	s.Status = types.StatusCompleted
	s.DocumentPath = "output/s-1.md"
	s.Review = &types.ReviewResult{Overall: 8.7}
	return s, nil
}

type nopStream struct{}

func (nopStream) Next(ctx context.Context, _ string) (types.StreamMessage, error) {
	<-ctx.Done()
	return types.StreamMessage{}, ctx.Err()
}

func (nopStream) Close(string) {}

func newTestServer(fail bool) (*Server, *fakeRunner) {
	sessions := NewSessions(time.Hour)
	runner := &fakeRunner{sessions: sessions, fail: fail}
	srv := New(types.ServerConfig{Addr: ":0", SessionTTL: time.Hour, Backlog: 10}, runner, nopStream{}, sessions, nil)
	return srv, runner
}

func do(t *testing.T, srv *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestCreateAnswerAndStatus(t *testing.T) {
	srv, runner := newTestServer(false)

	code, body := do(t, srv, http.MethodPost, "/api/proposals", `{"topic": "retrieval augmented generation"}`)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "s-1", body["sessionId"])

	code, _ = do(t, srv, http.MethodPost, "/api/proposals/s-1/clarification", `{"answer": "biomedical QA"}`)
	assert.Equal(t, http.StatusNoContent, code)

	srv.Wait()
	runner.mu.Lock()
	assert.Equal(t, "biomedical QA", runner.answer)
	runner.mu.Unlock()

	code, body = do(t, srv, http.MethodGet, "/api/proposals/s-1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "output/s-1.md", body["documentPath"])
	assert.Equal(t, true, body["answered"])
	assert.Equal(t, 8.7, body["overall"])
	assert.NotEmpty(t, body["finishedAt"])
}

func TestCreateWithClarificationSkipsWait(t *testing.T) {
	srv, runner := newTestServer(false)

	code, _ := do(t, srv, http.MethodPost, "/api/proposals", `{"topic": "rag", "clarification": "legal documents"}`)
	require.Equal(t, http.StatusAccepted, code)
	srv.Wait()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, "legal documents", runner.answer)
}

func TestFailedRunIsReported(t *testing.T) {
	srv, _ := newTestServer(true)

	code, _ := do(t, srv, http.MethodPost, "/api/proposals", `{"topic": "rag", "clarification": "x"}`)
	require.Equal(t, http.StatusAccepted, code)
	srv.Wait()

	code, body := do(t, srv, http.MethodGet, "/api/proposals/s-1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "disk full", body["error"])
}

func TestRequestErrors(t *testing.T) {
	srv, _ := newTestServer(false)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing topic", http.MethodPost, "/api/proposals", `{"topic": "  "}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/proposals", `{"topic":`, http.StatusBadRequest},
		{"unknown status", http.MethodGet, "/api/proposals/nope", "", http.StatusNotFound},
		{"unknown clarification", http.MethodPost, "/api/proposals/nope/clarification", `{"answer": "a"}`, http.StatusNotFound},
		{"empty answer", http.MethodPost, "/api/proposals/nope/clarification", `{"answer": ""}`, http.StatusBadRequest},
		{"stream without upgrade", http.MethodGet, "/ws/proposals/nope", "", http.StatusUpgradeRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(false)
	code, body := do(t, srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestSessionsAnswerOnce(t *testing.T) {
	s := NewSessions(time.Hour)
	s.Start("a", "topic")

	require.NoError(t, s.Answer("a", "first"))
	assert.ErrorIs(t, s.Answer("a", "second"), ErrAlreadyAnswered)
	assert.ErrorIs(t, s.Answer("b", "x"), ErrUnknownSession)

	got, err := s.Await(context.Background(), "a", []string{"q1"})
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	st, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, st.Questions)
	assert.Equal(t, types.StatusRunning, st.Status)
}

func TestSessionsAwaitTimesOut(t *testing.T) {
	s := NewSessions(time.Hour)
	s.Start("a", "topic")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Await(ctx, "a", nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	_, err = s.Await(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownSession)

	assert.ErrorIs(t, s.Answer("a", "too late"), ErrClarificationClosed)
	st, err := s.Get("a")
	require.NoError(t, err)
	assert.False(t, st.Answered)
}

func TestSessionsRejectAnswerAfterFinish(t *testing.T) {
	s := NewSessions(time.Hour)
	s.Start("a", "topic")
	sess := types.NewSession("a", "topic", 5)
	sess.Status = types.StatusCompleted
	s.Finish(sess)

	assert.ErrorIs(t, s.Answer("a", "late"), ErrClarificationClosed)
}

func TestLateClarificationIsGone(t *testing.T) {
	srv, _ := newTestServer(false)

	code, _ := do(t, srv, http.MethodPost, "/api/proposals", `{"topic": "graph rag", "clarification": "legal search"}`)
	require.Equal(t, http.StatusAccepted, code)
	srv.Wait()

	code, body := do(t, srv, http.MethodPost, "/api/proposals/s-1/clarification", `{"answer": "biomedical QA"}`)
	assert.Equal(t, http.StatusGone, code)
	assert.Contains(t, body["error"], "no longer accepts clarification")
}

type recordingSink struct{ msgs []types.StreamMessage }

func (r *recordingSink) Push(m types.StreamMessage) bool {
	r.msgs = append(r.msgs, m)
	return false
}

func TestTrackRecordsLatestStep(t *testing.T) {
	s := NewSessions(time.Hour)
	s.Start("a", "topic")
	next := &recordingSink{}
	sink := s.Track(next)

	sink.Push(types.StreamMessage{SessionID: "a", Step: 1, Stage: "plan"})
	sink.Push(types.StreamMessage{SessionID: "a", Step: 2, Stage: "execute"})
	sink.Push(types.StreamMessage{SessionID: "other", Step: 1, Stage: "plan"})

	st, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Step)
	assert.Equal(t, "execute", st.Stage)
	assert.Len(t, next.msgs, 3)
}

func TestSessionsExpire(t *testing.T) {
	s := NewSessions(10 * time.Millisecond)
	s.Start("a", "topic")
	assert.Equal(t, 1, s.Count())

	time.Sleep(30 * time.Millisecond)
	_, err := s.Get("a")
	assert.ErrorIs(t, err, ErrUnknownSession)
}
