package orch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

var ErrShuttingDown = errors.New("shutting down")

// CreateRoom opens name with sid as host. A provisioned meeting supplies the
// password and expiry; anything else becomes an open ad hoc room.
func (o *Orchestrator) CreateRoom(ctx context.Context, sid core.SessionID, rawName, displayName string) error {
	if o.closing.Load() {
		o.send(sid, roomError("The server is restarting. Please try again shortly."))
		return ErrShuttingDown
	}
	name, err := domain.ParseRoomName(rawName)
	if err != nil {
		o.send(sid, roomError("Invalid room name."))
		return err
	}
	_ = o.Registry.SetDisplayName(sid, domain.NormalizeDisplayName(displayName, domain.DefaultHostName))

	cfg := core.RoomConfig{
		Name:     name,
		Host:     sid,
		Capacity: o.Capacity,
		Observer: o,
		Now:      o.Now,
	}
	if o.Store != nil {
		m, err := o.Store.GetMeeting(ctx, name)
		switch {
		case errors.Is(err, domain.ErrMeetingNotFound):
		case err != nil:
			log.Error().Err(err).Str("module", "orch").Str("room", string(name)).Msg("meeting lookup failed")
			o.send(sid, roomError("Could not load the meeting. Please try again."))
			return err
		case m.Expired(o.now()):
			log.Info().Str("module", "orch").Str("room", string(name)).Msg("create rejected: meeting expired")
			o.send(sid, roomError(domain.RoomExpired.Reason()))
			return domain.ErrRoomExpired
		default:
			cfg.Password = m.Password
			cfg.ExpiresAt = m.ExpiresAt
		}
	}

	room := core.NewRoomService(cfg)
	if old, replaced := o.Rooms.Put(room); replaced {
		o.closeRoom(old, EndedReplaced, sid)
	}
	o.Registry.JoinRoom(sid, name)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(name)).Bool("secure", cfg.Password != "").Msg("room created")
	o.send(sid, createdEvent{envelope: on(EvCreated), Room: name, ICEServers: o.iceServers()})
	return nil
}

// JoinRequest carries the client's join-request fields.
type JoinRequest struct {
	Room     string
	Password string
	Token    string
	Name     string
}

// Join runs the Admission Gate and, on success, puts sid in the waiting queue.
func (o *Orchestrator) Join(ctx context.Context, sid core.SessionID, req JoinRequest) domain.Outcome {
	display := domain.NormalizeDisplayName(req.Name, domain.DefaultGuestName)
	name := domain.RoomName(strings.TrimSpace(req.Room))

	v := o.Gate.Evaluate(ctx, app.JoinRequest{
		Source:   o.Registry.Addr(sid),
		Room:     name,
		Password: req.Password,
		Token:    req.Token,
	})
	if !v.Outcome.Admitted() {
		return o.rejectJoin(sid, name, v.Outcome)
	}

	_, err := v.Room.Enqueue(core.WaitingEntry{ID: sid, Name: display, Token: v.Token})
	switch {
	case errors.Is(err, domain.ErrRoomClosed):
		return o.rejectJoin(sid, name, domain.RoomNotFound)
	case errors.Is(err, domain.ErrTokenInUse):
		return o.rejectJoin(sid, name, domain.TokenInvalid)
	case errors.Is(err, domain.ErrAlreadyInRoom):
		return o.rejectJoin(sid, name, domain.AlreadyInRoom)
	case err != nil:
		log.Error().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room", string(name)).Msg("enqueue")
		return o.rejectJoin(sid, name, domain.RoomNotFound)
	}

	// The connection may have gone away while the token was being looked up.
	if _, ok := o.Registry.GetSession(sid); !ok {
		v.Room.Dequeue(sid)
		return v.Outcome
	}
	_ = o.Registry.SetDisplayName(sid, display)
	o.Registry.JoinRoom(sid, name)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(name)).Msg("guest enqueued")
	return v.Outcome
}

func (o *Orchestrator) rejectJoin(sid core.SessionID, name domain.RoomName, out domain.Outcome) domain.Outcome {
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(name)).Str("outcome", out.String()).Msg("join rejected")
	o.send(sid, joinError(out))
	return out
}

// hostRoom resolves name and checks sid is its host; failures are reported to sid.
func (o *Orchestrator) hostRoom(sid core.SessionID, rawName string) (core.RoomService, error) {
	room, ok := o.Rooms.Get(domain.RoomName(strings.TrimSpace(rawName)))
	if !ok {
		o.send(sid, plainError(domain.ErrRoomNotFound.Error()))
		return nil, domain.ErrRoomNotFound
	}
	if room.Host() != sid {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room.Name())).Msg("host-only action refused")
		o.send(sid, plainError(domain.ErrNotHost.Error()))
		return nil, domain.ErrNotHost
	}
	return room, nil
}

// Admit moves target from the waiting queue into the call. Its join token,
// if any, is consumed here and nowhere else.
func (o *Orchestrator) Admit(sid core.SessionID, rawName string, target core.SessionID) error {
	room, err := o.hostRoom(sid, rawName)
	if err != nil {
		return err
	}
	res, err := room.Admit(target)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(room.Name())).Str("target", string(target)).Msg("admit failed")
		o.send(sid, plainError(err.Error()))
		return err
	}
	o.Registry.JoinRoom(target, room.Name())

	if res.Entry.Token != "" && o.Store != nil {
		ctx, cancel := o.collaboratorCtx()
		if err := o.Store.ConsumeToken(ctx, res.Entry.Token); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("room", string(room.Name())).Str("target", string(target)).Msg("consume token")
		}
		cancel()
	}
	if res.Started && o.Store != nil {
		name, at := room.Name(), res.StartedAt
		o.Tasks.Go("mark-call-started", func() {
			o.collaborate("mark call started", name, func(ctx context.Context) error {
				return o.Store.MarkCallStarted(ctx, name, at)
			})
		})
	}

	o.send(target, admittedEvent{
		envelope:     on(EvAdmitted),
		Room:         room.Name(),
		ICEServers:   o.iceServers(),
		Participants: o.members(room),
	})
	return nil
}

// Deny drops target from the queue. An unconsumed token stays valid.
func (o *Orchestrator) Deny(sid core.SessionID, rawName string, target core.SessionID) error {
	room, err := o.hostRoom(sid, rawName)
	if err != nil {
		return err
	}
	if _, ok := room.Dequeue(target); !ok {
		o.send(sid, plainError(domain.ErrNotQueued.Error()))
		return domain.ErrNotQueued
	}
	o.Registry.LeaveRoom(target, room.Name())
	log.Info().Str("module", "orch").Str("room", string(room.Name())).Str("target", string(target)).Msg("guest denied")
	o.send(target, roomEvent{envelope: on(EvDenied), Room: room.Name()})
	return nil
}

func (o *Orchestrator) EndMeeting(sid core.SessionID, rawName string) error {
	room, err := o.hostRoom(sid, rawName)
	if err != nil {
		return err
	}
	o.finalize(room, EndedByHost)
	return nil
}

// finalize tears room down once. Removal from the registry comes first, so a
// racing trigger finds nothing and any later join sees RoomNotFound.
func (o *Orchestrator) finalize(room core.RoomService, reason string) bool {
	if !o.Rooms.Remove(room) {
		return false
	}
	snap, ok := o.closeRoom(room, reason, "")
	if !ok {
		return false
	}
	endedAt := o.now()
	dur := domain.DurationSeconds(snap.StartedAt, endedAt)
	log.Info().Str("module", "orch").Str("room", string(snap.Name)).Str("reason", reason).Int64("duration", dur).Msg("meeting finalized")

	o.Tasks.Go("finalize", func() {
		o.completeFinalization(snap, endedAt, dur)
	})
	return true
}

// closeRoom flips room to closed and tells everyone still attached, except skip.
func (o *Orchestrator) closeRoom(room core.RoomService, reason string, skip core.SessionID) (core.RoomSnapshot, bool) {
	snap, ok := room.Close()
	if !ok {
		return snap, false
	}
	ended := roomEvent{envelope: on(EvMeetingEnded), Room: snap.Name, Reason: reason}
	notify := func(sid core.SessionID) {
		o.Registry.LeaveRoom(sid, snap.Name)
		if sid != skip {
			o.send(sid, ended)
		}
	}
	for _, p := range snap.Participants {
		notify(p)
	}
	for _, q := range snap.Queued {
		notify(q.ID)
	}
	return snap, true
}

// completeFinalization runs the collaborators. Each one is best-effort.
func (o *Orchestrator) completeFinalization(snap core.RoomSnapshot, endedAt time.Time, dur int64) {
	lines := snap.ChatLog
	if o.Store != nil {
		o.collaborate("chat transcript", snap.Name, func(ctx context.Context) error {
			stored, err := o.Store.ChatTranscript(ctx, snap.Name)
			if err == nil && len(stored) > 0 {
				lines = stored
			}
			return err
		})
	}

	var summary *string
	if o.Summarizer != nil {
		o.collaborate("summarize", snap.Name, func(ctx context.Context) error {
			text, err := o.Summarizer.Summarize(ctx, lines)
			if err == nil {
				summary = &text
			}
			return err
		})
	}

	if o.Store != nil {
		o.collaborate("finalize meeting", snap.Name, func(ctx context.Context) error {
			return o.Store.FinalizeMeeting(ctx, snap.Name, endedAt, dur, summary)
		})
	}
	if o.Notifier != nil {
		o.collaborate("notify end", snap.Name, func(ctx context.Context) error {
			return o.Notifier.NotifyEnd(ctx, snap.Name, summary, dur)
		})
	}
}

func (o *Orchestrator) collaborate(what string, room domain.RoomName, fn func(ctx context.Context) error) {
	ctx, cancel := o.collaboratorCtx()
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("room", string(room)).Msg(what)
	}
}

// PurgeExpired closes rooms past their expiry. It is housekeeping, not a finalization.
func (o *Orchestrator) PurgeExpired() int {
	now := o.now()
	n := 0
	for _, room := range o.Rooms.All() {
		if !room.Expired(now) || !o.Rooms.Remove(room) {
			continue
		}
		if _, ok := o.closeRoom(room, EndedExpired, ""); ok {
			log.Info().Str("module", "orch").Str("room", string(room.Name())).Msg("expired room purged")
			n++
		}
	}
	return n
}

// Shutdown stops new rooms and finalizes every live one. Pair it with
// Tasks.Close so the detached collaborator work is awaited.
func (o *Orchestrator) Shutdown() int {
	o.closing.Store(true)
	n := 0
	for _, room := range o.Rooms.All() {
		if o.finalize(room, EndedShutdown) {
			n++
		}
	}
	log.Info().Str("module", "orch").Int("rooms", n).Msg("live rooms finalized for shutdown")
	return n
}

// Run purges expired rooms and stale rate-limit buckets until ctx is done.
func (o *Orchestrator) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("housekeeping stopped")
			return
		case <-t.C:
			rooms := o.PurgeExpired()
			buckets := 0
			if o.Gate != nil && o.Gate.Limiter != nil {
				buckets = o.Gate.Limiter.Sweep()
			}
			log.Debug().Str("module", "orch").Int("rooms", rooms).Int("buckets", buckets).Msg("housekeeping tick")
		}
	}
}
