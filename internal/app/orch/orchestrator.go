package orch

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

const defaultCollaboratorTimeout = 30 * time.Second

// Orchestrator is the signaling and admission coordinator. It owns no global
// state: every registry it touches is injected.
// Store, Summarizer and Notifier are optional; without a Store every room is ad hoc.
type Orchestrator struct {
	Registry   *app.Registry
	Rooms      core.RoomManager
	Gate       *app.Gate
	Policy     app.Policy
	Store      core.Store
	Summarizer core.Summarizer
	Notifier   core.Notifier
	Tasks      *app.Detached

	ICEServers          []webrtc.ICEServer
	Capacity            int
	CollaboratorTimeout time.Duration
	Now                 func() time.Time

	closing atomic.Bool
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) collaboratorCtx() (context.Context, context.CancelFunc) {
	d := o.CollaboratorTimeout
	if d <= 0 {
		d = defaultCollaboratorTimeout
	}
	return context.WithTimeout(context.Background(), d)
}

// Connect registers a transport connection and greets it with its id.
func (o *Orchestrator) Connect(sess core.MemberSession, addr, client string, cancel context.CancelFunc) core.SessionID {
	sid := o.Registry.Connect(sess, addr, client, cancel)
	o.send(sid, helloEvent{envelope: on(EvHello), ID: sid})
	return sid
}

// OnDisconnect runs the cleanup cascade. Every room is inspected, not only the
// ones the registry remembers, so a missed bookkeeping step cannot leak a queue entry.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	rooms, _ := o.Registry.Disconnect(sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Int("rooms", len(rooms)).Msg("disconnect cascade")

	for _, room := range o.Rooms.All() {
		if room.Host() == sid {
			o.finalize(room, EndedHostLeft)
			continue
		}
		room.Dequeue(sid)
		if removed, _ := room.RemoveParticipant(sid); removed {
			o.broadcast(room, sid, memberEvent{envelope: on(EvUserDisconnected), ID: sid})
		}
	}
}

// QueueChanged implements core.QueueObserver. It runs under the room lock and
// only writes to connection buffers.
func (o *Orchestrator) QueueChanged(ch core.QueueChange) {
	switch ch.Kind {
	case core.QueueRepeated:
		// Nothing moved; only the asking guest hears back.
		pos := positionOf(ch.Queue, ch.Subject.ID)
		o.send(ch.Subject.ID, waitingRoomEvent{envelope: on(EvWaitingRoom), Room: ch.Room, Position: pos})
		o.send(ch.Subject.ID, queuePositionEvent{
			envelope: on(EvQueuePosition),
			Room:     ch.Room,
			Position: pos,
			Total:    len(ch.Queue),
		})
		return
	case core.QueueJoined:
		o.send(ch.Subject.ID, waitingRoomEvent{envelope: on(EvWaitingRoom), Room: ch.Room, Position: positionOf(ch.Queue, ch.Subject.ID)})
		o.send(ch.Host, guestWaitingEvent{
			envelope: on(EvGuestWaiting),
			ID:       ch.Subject.ID,
			Room:     ch.Room,
			Name:     ch.Subject.Name,
		})
	}

	queue := ch.Queue
	if queue == nil {
		queue = []core.QueuedGuest{}
	}
	o.send(ch.Host, queueUpdateEvent{envelope: on(EvQueueUpdate), Room: ch.Room, Queue: queue})
	for _, g := range ch.Queue {
		o.send(g.ID, queuePositionEvent{
			envelope: on(EvQueuePosition),
			Room:     ch.Room,
			Position: g.Position,
			Total:    len(ch.Queue),
		})
	}
}

func positionOf(queue []core.QueuedGuest, sid core.SessionID) int {
	for _, g := range queue {
		if g.ID == sid {
			return g.Position
		}
	}
	return 0
}

func (o *Orchestrator) send(sid core.SessionID, ev event) bool {
	sess, ok := o.Registry.GetSession(sid)
	if !ok || sess.Signal() == nil {
		return false
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", ev.kind()).Msg("marshal event")
		return false
	}
	if err := sess.Signal().TrySend(b); err != nil {
		o.onSendFailure(sid, ev.kind(), err)
		return false
	}
	return true
}

func (o *Orchestrator) onSendFailure(sid core.SessionID, kind string, err error) {
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(sid, kind) {
	case app.KickMember:
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("event", kind).Msg("kicking slow connection")
		o.Registry.Cancel(sid)
	case app.DropFrame:
		log.Debug().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("event", kind).Msg("frame dropped")
	case app.NoAction:
	}
}

// broadcast sends ev to every participant of room except skip.
func (o *Orchestrator) broadcast(room core.RoomService, skip core.SessionID, ev event) {
	for _, p := range room.Participants() {
		if p != skip {
			o.send(p, ev)
		}
	}
}

func (o *Orchestrator) members(room core.RoomService) []domain.Member {
	out := make([]domain.Member, 0, room.ParticipantCount())
	for _, p := range room.Participants() {
		role := domain.RoleGuest
		if p == room.Host() {
			role = domain.RoleHost
		}
		out = append(out, domain.Member{ID: string(p), Name: o.Registry.DisplayName(p), Role: role})
	}
	return out
}

func (o *Orchestrator) iceServers() []webrtc.ICEServer {
	if o.ICEServers == nil {
		return []webrtc.ICEServer{}
	}
	return o.ICEServers
}

// Stats is the introspection view served over HTTP.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

func (o *Orchestrator) Stats() Stats {
	return Stats{Rooms: o.Rooms.Count(), Connections: o.Registry.Count()}
}
