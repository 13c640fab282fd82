package core

import (
	"time"

	"github.com/dkeye/Consult/internal/domain"
)

// WaitingEntry is one guest waiting for the host's decision.
type WaitingEntry struct {
	ID       SessionID
	Name     string
	JoinedAt time.Time
	Token    string
}

// QueuedGuest is the position view of a WaitingEntry.
type QueuedGuest struct {
	ID             SessionID `json:"id"`
	Name           string    `json:"name"`
	Position       int       `json:"position"`
	WaitingSeconds int64     `json:"waitingSeconds"`
}

type QueueChangeKind int

const (
	QueueJoined QueueChangeKind = iota
	QueueLeft
	QueueAdmitted
	// QueueRepeated: an already queued guest asked again. The queue is unchanged.
	QueueRepeated
)

// QueueChange is emitted after every queue mutation, and on a repeated
// enqueue, with the recomputed positions.
type QueueChange struct {
	Room    domain.RoomName
	Host    SessionID
	Kind    QueueChangeKind
	Subject WaitingEntry
	Queue   []QueuedGuest
}

// QueueObserver is called inside the room's critical section, so notifications
// leave in mutation order. Implementations must not call back into the room.
type QueueObserver interface {
	QueueChanged(QueueChange)
}

// AdmitResult reports the side effects an admission owes to collaborators.
type AdmitResult struct {
	Entry     WaitingEntry
	Started   bool
	StartedAt time.Time
}

// RoomSnapshot is what is left of a room once it has been closed.
type RoomSnapshot struct {
	Name         domain.RoomName
	Host         SessionID
	Participants []SessionID
	Queued       []WaitingEntry
	StartedAt    *time.Time
	ChatLog      []string
}

// RoomConfig fixes everything that is immutable for the room's lifetime.
type RoomConfig struct {
	Name      domain.RoomName
	Host      SessionID
	Password  string
	ExpiresAt *time.Time
	Capacity  int
	Observer  QueueObserver
	Now       func() time.Time
}

// RoomService is the core-facing API of a room.
// It owns membership, the waiting queue and the call clock, never transport resources.
type RoomService interface {
	Name() domain.RoomName
	Host() SessionID
	Capacity() int
	ExpiresAt() *time.Time
	Expired(now time.Time) bool
	RequiresPassword() bool
	CheckPassword(given string) bool
	StartedAt() (time.Time, bool)
	Closed() bool

	ParticipantCount() int
	Participants() []SessionID
	IsParticipant(sid SessionID) bool
	RemoveParticipant(sid SessionID) (removed, wasHost bool)

	Enqueue(e WaitingEntry) (int, error)
	Dequeue(sid SessionID) (WaitingEntry, bool)
	IsQueued(sid SessionID) bool
	QueueSnapshot() []QueuedGuest
	Admit(sid SessionID) (AdmitResult, error)

	AppendChat(line string)
	ChatLog() []string

	Close() (RoomSnapshot, bool)
}

type RoomInfo struct {
	Name         domain.RoomName `json:"name"`
	Participants int             `json:"participants"`
	Queued       int             `json:"queued"`
	Capacity     int             `json:"capacity"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
}

// RoomManager is the Room Registry: name -> live room.
type RoomManager interface {
	Get(name domain.RoomName) (RoomService, bool)
	// Put registers room, replacing and returning any previous entry under the name.
	Put(room RoomService) (RoomService, bool)
	// Remove deletes the entry only while it still is room. The first caller wins.
	Remove(room RoomService) bool
	All() []RoomService
	List() []RoomInfo
	Count() int
}
