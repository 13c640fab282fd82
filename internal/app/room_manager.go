package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]core.RoomService
}

func NewRoomManager() core.RoomManager {
	return &RoomManagerImpl{rooms: make(map[domain.RoomName]core.RoomService)}
}

func (f *RoomManagerImpl) Get(name domain.RoomName) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[name]
	return room, ok
}

func (f *RoomManagerImpl) Put(room core.RoomService) (core.RoomService, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, replaced := f.rooms[room.Name()]
	f.rooms[room.Name()] = room
	if replaced {
		log.Warn().Str("module", "app.rooms").Str("room", string(room.Name())).Msg("room replaced")
	}
	return old, replaced
}

func (f *RoomManagerImpl) Remove(room core.RoomService) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rooms[room.Name()]
	if !ok || cur != room {
		return false
	}
	delete(f.rooms, room.Name())
	return true
}

func (f *RoomManagerImpl) All() []core.RoomService {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomService, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, r)
	}
	return out
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	out := make([]core.RoomInfo, 0)
	for _, r := range f.All() {
		info := core.RoomInfo{
			Name:         r.Name(),
			Participants: r.ParticipantCount(),
			Queued:       len(r.QueueSnapshot()),
			Capacity:     r.Capacity(),
			ExpiresAt:    r.ExpiresAt(),
		}
		if t, ok := r.StartedAt(); ok {
			info.StartedAt = &t
		}
		out = append(out, info)
	}
	return out
}

func (f *RoomManagerImpl) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rooms)
}
