package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recConn struct {
	mu     sync.Mutex
	frames []map[string]any
	full   bool
}

func (c *recConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("backpressure")
	}
	var m map[string]any
	if err := json.Unmarshal(f, &m); err != nil {
		return err
	}
	c.frames = append(c.frames, m)
	return nil
}

func (c *recConn) Close() {}

func (c *recConn) Types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, f["type"].(string))
	}
	return out
}

// Last returns the most recent frame of type typ, or nil.
func (c *recConn) Last(typ string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i]["type"] == typ {
			return c.frames[i]
		}
	}
	return nil
}

func (c *recConn) Count(typ string) int {
	n := 0
	for _, t := range c.Types() {
		if t == typ {
			n++
		}
	}
	return n
}

type tokenRow struct {
	room domain.RoomName
	used bool
}

type finalizeCall struct {
	room     domain.RoomName
	endedAt  time.Time
	duration int64
	summary  *string
}

type fakeStore struct {
	mu            sync.Mutex
	meetings      map[domain.RoomName]*domain.Meeting
	tokens        map[string]*tokenRow
	chat          map[domain.RoomName][]string
	started       map[domain.RoomName]time.Time
	finalized     []finalizeCall
	meetingErr    error
	transcriptErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		meetings: make(map[domain.RoomName]*domain.Meeting),
		tokens:   make(map[string]*tokenRow),
		chat:     make(map[domain.RoomName][]string),
		started:  make(map[domain.RoomName]time.Time),
	}
}

func (s *fakeStore) ValidateToken(_ context.Context, token string, room domain.RoomName) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[token]
	return ok && !row.used && row.room == room, nil
}

func (s *fakeStore) GetMeeting(_ context.Context, room domain.RoomName) (*domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meetingErr != nil {
		return nil, s.meetingErr
	}
	m, ok := s.meetings[room]
	if !ok {
		return nil, domain.ErrMeetingNotFound
	}
	return m, nil
}

func (s *fakeStore) MarkCallStarted(_ context.Context, room domain.RoomName, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started[room] = at
	return nil
}

func (s *fakeStore) ConsumeToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[token]
	if !ok || row.used {
		return domain.ErrTokenUsed
	}
	row.used = true
	return nil
}

func (s *fakeStore) AppendChatMessage(_ context.Context, room domain.RoomName, sender, text string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat[room] = append(s.chat[room], domain.ChatLine(sender, text))
	return nil
}

func (s *fakeStore) ChatTranscript(_ context.Context, room domain.RoomName) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcriptErr != nil {
		return nil, s.transcriptErr
	}
	return append([]string(nil), s.chat[room]...), nil
}

func (s *fakeStore) FinalizeMeeting(_ context.Context, room domain.RoomName, endedAt time.Time, dur int64, summary *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = append(s.finalized, finalizeCall{room: room, endedAt: endedAt, duration: dur, summary: summary})
	return nil
}

func (s *fakeStore) Finalized() []finalizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]finalizeCall(nil), s.finalized...)
}

func (s *fakeStore) TokenUsed(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[token]
	return ok && row.used
}

type fakeSummarizer struct {
	mu    sync.Mutex
	got   [][]string
	text  string
	err   error
	panic bool
}

func (f *fakeSummarizer) Summarize(_ context.Context, lines []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panic {
		panic("summarizer crashed")
	}
	f.got = append(f.got, lines)
	return f.text, f.err
}

type notifyCall struct {
	room     domain.RoomName
	summary  *string
	duration int64
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (f *fakeNotifier) NotifyEnd(_ context.Context, room domain.RoomName, summary *string, dur int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{room: room, summary: summary, duration: dur})
	return nil
}

func (f *fakeNotifier) Calls() []notifyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifyCall(nil), f.calls...)
}

type harness struct {
	o        *Orchestrator
	clk      *clock
	store    *fakeStore
	summary  *fakeSummarizer
	notifier *fakeNotifier
	conns    map[core.SessionID]*recConn
	ctxs     map[core.SessionID]context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := newFakeStore()
	rooms := app.NewRoomManager()
	h := &harness{
		clk:      clk,
		store:    store,
		summary:  &fakeSummarizer{text: "Patient reported mild symptoms."},
		notifier: &fakeNotifier{},
		conns:    make(map[core.SessionID]*recConn),
		ctxs:     make(map[core.SessionID]context.Context),
	}
	h.o = &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    rooms,
		Gate: &app.Gate{
			Rooms:   rooms,
			Limiter: app.NewSourceRateLimiter(5, time.Minute).WithClock(clk.Now),
			Tokens:  store,
			Now:     clk.Now,
		},
		Policy:     app.SimplePolicy{},
		Store:      store,
		Summarizer: h.summary,
		Notifier:   h.notifier,
		Tasks:      &app.Detached{},
		Capacity:   domain.DefaultRoomCapacity,
		Now:        clk.Now,
	}
	return h
}

func (h *harness) connect(t *testing.T, addr string) (core.SessionID, *recConn) {
	t.Helper()
	conn := &recConn{}
	ctx, cancel := context.WithCancel(context.Background())
	sess := core.NewMemberSession(&domain.Participant{}).UpdateSignal(conn)
	sid := h.o.Connect(sess, addr, "", cancel)
	require.Equal(t, []string{EvHello}, conn.Types())
	h.conns[sid] = conn
	h.ctxs[sid] = ctx
	return sid, conn
}

// admitGuest runs a guest from connect to admitted in an open room.
func (h *harness) admitGuest(t *testing.T, host core.SessionID, room, addr string) core.SessionID {
	t.Helper()
	sid, _ := h.connect(t, addr)
	require.Equal(t, domain.Enqueued, h.o.Join(context.Background(), sid, JoinRequest{Room: room, Name: "guest"}))
	require.NoError(t, h.o.Admit(host, room, sid))
	return sid
}
