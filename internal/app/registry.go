package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

type sessionEntry struct {
	Session core.MemberSession
	Addr    string
	Client  string
	Rooms   map[domain.RoomName]struct{}
	Cancel  context.CancelFunc
}

// Registry is the Connection Registry: connection id -> session attributes.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

// Connect assigns a fresh connection id to sess.
func (r *Registry) Connect(sess core.MemberSession, addr, client string, cancel context.CancelFunc) core.SessionID {
	sid := core.SessionID(uuid.NewString())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{
		Session: sess,
		Addr:    addr,
		Client:  client,
		Rooms:   make(map[domain.RoomName]struct{}),
		Cancel:  cancel,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("addr", addr).Str("client", client).Msg("connected")
	return sid
}

// Disconnect forgets sid and hands back the rooms it was attached to.
func (r *Registry) Disconnect(sid core.SessionID) ([]domain.RoomName, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	delete(r.sessions, sid)
	rooms := make([]domain.RoomName, 0, len(e.Rooms))
	for name := range e.Rooms {
		rooms = append(rooms, name)
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Int("rooms", len(rooms)).Msg("disconnected")
	return rooms, true
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) DisplayName(sid core.SessionID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session.Meta().DisplayName
	}
	return ""
}

func (r *Registry) SetDisplayName(sid core.SessionID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	if err := e.Session.Meta().SetDisplayName(name); err != nil {
		return err
	}
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("name", name).Msg("updated display name")
	return nil
}

func (r *Registry) Addr(sid core.SessionID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Addr
	}
	return ""
}

func (r *Registry) JoinRoom(sid core.SessionID, room domain.RoomName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.Rooms[room] = struct{}{}
	}
}

func (r *Registry) LeaveRoom(sid core.SessionID, room domain.RoomName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		delete(e.Rooms, room)
	}
}

func (r *Registry) RoomsOf(sid core.SessionID) []domain.RoomName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	out := make([]domain.RoomName, 0, len(e.Rooms))
	for name := range e.Rooms {
		out = append(out, name)
	}
	return out
}

// Cancel tears the transport down; the adapter's read loop then runs the disconnect cascade.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
