package orch

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// participantRoom returns the room only when sid is currently in its call.
func (o *Orchestrator) participantRoom(sid core.SessionID, rawName string) (core.RoomService, bool) {
	room, ok := o.Rooms.Get(domain.RoomName(strings.TrimSpace(rawName)))
	if !ok || !room.IsParticipant(sid) {
		return nil, false
	}
	return room, true
}

// Relay forwards an opaque offer, answer or candidate to target. Nothing is
// buffered; if either side is not in the call the message is dropped.
func (o *Orchestrator) Relay(sid core.SessionID, kind, rawName string, target core.SessionID, payload json.RawMessage) bool {
	switch kind {
	case EvOffer, EvAnswer, EvCandidate:
	default:
		return false
	}
	room, ok := o.participantRoom(sid, rawName)
	if !ok || target == sid || !room.IsParticipant(target) {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("target", string(target)).Str("kind", kind).Msg("relay dropped")
		return false
	}
	return o.send(target, relayEvent{envelope: on(kind), From: sid, Payload: payload})
}

// Ready announces sid to the rest of the call. Existing peers make the offer.
func (o *Orchestrator) Ready(sid core.SessionID, rawName string) {
	room, ok := o.participantRoom(sid, rawName)
	if !ok {
		return
	}
	o.broadcast(room, sid, relayEvent{envelope: on(EvReady), From: sid})
}

func (o *Orchestrator) Chat(sid core.SessionID, rawName, message string) {
	text := strings.TrimSpace(message)
	if text == "" {
		return
	}
	if len(text) > domain.MaxChatMessageLen {
		o.send(sid, plainError("Message too long."))
		return
	}
	room, ok := o.participantRoom(sid, rawName)
	if !ok {
		return
	}
	sender := o.Registry.DisplayName(sid)
	if sender == "" {
		sender = "Anonymous"
	}
	at := o.now()
	room.AppendChat(domain.ChatLine(sender, text))

	if o.Store != nil {
		name := room.Name()
		o.Tasks.Go("append-chat", func() {
			o.collaborate("append chat message", name, func(ctx context.Context) error {
				return o.Store.AppendChatMessage(ctx, name, sender, text, at)
			})
		})
	}
	o.broadcast(room, sid, chatEvent{
		envelope:   on(EvChatMessage),
		From:       sid,
		SenderName: sender,
		Message:    text,
		Timestamp:  at,
	})
}

func (o *Orchestrator) SetName(sid core.SessionID, rawName, name string) error {
	if err := o.Registry.SetDisplayName(sid, name); err != nil {
		o.send(sid, plainError(err.Error()))
		return err
	}
	if room, ok := o.participantRoom(sid, rawName); ok {
		o.broadcast(room, sid, memberEvent{envelope: on(EvUserName), ID: sid, Name: o.Registry.DisplayName(sid)})
	}
	return nil
}

func (o *Orchestrator) RaiseHand(sid core.SessionID, rawName string) {
	room, ok := o.participantRoom(sid, rawName)
	if !ok || room.Host() == sid {
		return
	}
	name := domain.NormalizeDisplayName(o.Registry.DisplayName(sid), domain.DefaultGuestName)
	o.send(room.Host(), memberEvent{envelope: on(EvHandRaised), ID: sid, Name: name})
}

func (o *Orchestrator) LowerHand(sid core.SessionID, rawName string) {
	o.send(sid, on(EvHandLoweredConfirm))
	room, ok := o.participantRoom(sid, rawName)
	if !ok || room.Host() == sid {
		return
	}
	o.send(room.Host(), memberEvent{envelope: on(EvHandLowered), ID: sid})
}

func (o *Orchestrator) LowerHandFor(sid core.SessionID, rawName string, target core.SessionID) error {
	room, err := o.hostRoom(sid, rawName)
	if err != nil {
		return err
	}
	if !room.IsParticipant(target) {
		return domain.ErrNotParticipant
	}
	o.send(target, on(EvHandLoweredConfirm))
	return nil
}
