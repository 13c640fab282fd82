package core

import (
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Consult/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// Every mutation of participants, queue and call clock happens under mu.
type roomImpl struct {
	name      domain.RoomName
	host      SessionID
	password  string
	expiresAt *time.Time
	capacity  int
	observer  QueueObserver
	now       func() time.Time

	mu             sync.Mutex
	closed         bool
	participants   []SessionID
	queue          WaitingQueue
	startedAt      *time.Time
	admittedTokens map[string]struct{}
	chatLog        []string
}

// NewRoomService registers the host as the first participant.
func NewRoomService(cfg RoomConfig) RoomService {
	if cfg.Capacity <= 0 {
		cfg.Capacity = domain.DefaultRoomCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &roomImpl{
		name:           cfg.Name,
		host:           cfg.Host,
		password:       cfg.Password,
		expiresAt:      cfg.ExpiresAt,
		capacity:       cfg.Capacity,
		observer:       cfg.Observer,
		now:            cfg.Now,
		participants:   []SessionID{cfg.Host},
		admittedTokens: make(map[string]struct{}),
	}
}

func (r *roomImpl) Name() domain.RoomName  { return r.name }
func (r *roomImpl) Host() SessionID        { return r.host }
func (r *roomImpl) Capacity() int          { return r.capacity }
func (r *roomImpl) ExpiresAt() *time.Time  { return r.expiresAt }
func (r *roomImpl) RequiresPassword() bool { return r.password != "" }

func (r *roomImpl) Expired(now time.Time) bool {
	return r.expiresAt != nil && r.expiresAt.Before(now)
}

func (r *roomImpl) CheckPassword(given string) bool {
	if r.password == "" {
		return true
	}
	return domain.PasswordMatches(r.password, given)
}

func (r *roomImpl) StartedAt() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startedAt == nil {
		return time.Time{}, false
	}
	return *r.startedAt, true
}

func (r *roomImpl) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *roomImpl) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

func (r *roomImpl) Participants() []SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.participants)
}

func (r *roomImpl) IsParticipant(sid SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.participants, sid)
}

// RemoveParticipant reports wasHost so the caller can tear the whole room down.
func (r *roomImpl) RemoveParticipant(sid SessionID) (removed, wasHost bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.Index(r.participants, sid)
	if i < 0 {
		return false, false
	}
	r.participants = slices.Delete(r.participants, i, i+1)
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("sid", string(sid)).Msg("participant removed")
	return true, sid == r.host
}

func (r *roomImpl) Enqueue(e WaitingEntry) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, domain.ErrRoomClosed
	}
	if slices.Contains(r.participants, e.ID) {
		return 0, domain.ErrAlreadyInRoom
	}
	if queued, ok := r.queue.Get(e.ID); ok {
		r.notifyLocked(QueueRepeated, queued)
		return r.queue.Position(e.ID), nil
	}
	if e.Token != "" {
		if _, used := r.admittedTokens[e.Token]; used || r.queue.HasToken(e.Token) {
			return 0, domain.ErrTokenInUse
		}
	}
	if e.JoinedAt.IsZero() {
		e.JoinedAt = r.now()
	}
	r.queue.Push(e)
	r.notifyLocked(QueueJoined, e)
	return r.queue.Position(e.ID), nil
}

func (r *roomImpl) Dequeue(sid SessionID) (WaitingEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.queue.Remove(sid)
	if !ok {
		return WaitingEntry{}, false
	}
	r.notifyLocked(QueueLeft, e)
	return e, true
}

func (r *roomImpl) IsQueued(sid SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Position(sid) > 0
}

func (r *roomImpl) QueueSnapshot() []QueuedGuest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Snapshot(r.now())
}

// Admit moves a queued guest into the participant set. Capacity is checked here
// too so two concurrent admissions can never both pass a full room.
func (r *roomImpl) Admit(sid SessionID) (AdmitResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return AdmitResult{}, domain.ErrRoomClosed
	}
	if r.queue.Position(sid) == 0 {
		return AdmitResult{}, domain.ErrNotQueued
	}
	if len(r.participants) >= r.capacity {
		return AdmitResult{}, domain.ErrRoomFull
	}
	e, _ := r.queue.Remove(sid)
	r.participants = append(r.participants, sid)
	if e.Token != "" {
		r.admittedTokens[e.Token] = struct{}{}
	}
	res := AdmitResult{Entry: e}
	if r.startedAt == nil {
		t := r.now()
		r.startedAt = &t
		res.Started = true
		res.StartedAt = t
	}
	r.notifyLocked(QueueAdmitted, e)
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("sid", string(sid)).Int("participants", len(r.participants)).Msg("guest admitted")
	return res, nil
}

func (r *roomImpl) AppendChat(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chatLog = append(r.chatLog, line)
}

func (r *roomImpl) ChatLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.chatLog)
}

// Close is the one-way switch to Finalizing; only the first call gets the snapshot.
func (r *roomImpl) Close() (RoomSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return RoomSnapshot{}, false
	}
	r.closed = true
	snap := RoomSnapshot{
		Name:         r.name,
		Host:         r.host,
		Participants: slices.Clone(r.participants),
		Queued:       r.queue.Entries(),
		ChatLog:      slices.Clone(r.chatLog),
	}
	if r.startedAt != nil {
		t := *r.startedAt
		snap.StartedAt = &t
	}
	return snap, true
}

func (r *roomImpl) notifyLocked(kind QueueChangeKind, subject WaitingEntry) {
	if r.observer == nil {
		return
	}
	r.observer.QueueChanged(QueueChange{
		Room:    r.name,
		Host:    r.host,
		Kind:    kind,
		Subject: subject,
		Queue:   r.queue.Snapshot(r.now()),
	})
}
