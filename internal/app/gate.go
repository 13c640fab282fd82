package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// JoinRequest is what a guest submits to enter a room.
type JoinRequest struct {
	Source   string
	Room     domain.RoomName
	Password string
	Token    string
}

// Verdict is the gate's answer. Room is set only for Enqueued.
type Verdict struct {
	Outcome domain.Outcome
	Room    core.RoomService
	Token   string
}

// Gate is the Admission Gate. The order of checks is fixed: a caller never
// learns anything a later check guards once an earlier one has failed.
type Gate struct {
	Rooms   core.RoomManager
	Limiter *SourceRateLimiter
	Tokens  core.TokenValidator
	Now     func() time.Time
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Gate) Evaluate(ctx context.Context, req JoinRequest) Verdict {
	if g.Limiter != nil && !g.Limiter.Allow(req.Source) {
		return Verdict{Outcome: domain.RateLimited}
	}
	room, ok := g.Rooms.Get(req.Room)
	if !ok || room.Closed() {
		return Verdict{Outcome: domain.RoomNotFound}
	}
	if room.Expired(g.now()) {
		return Verdict{Outcome: domain.RoomExpired}
	}
	if room.ParticipantCount() >= room.Capacity() {
		return Verdict{Outcome: domain.RoomFull}
	}
	if !room.CheckPassword(req.Password) {
		return Verdict{Outcome: domain.WrongPassword}
	}

	switch {
	case req.Token != "":
		if g.Tokens == nil {
			return Verdict{Outcome: domain.TokenInvalid}
		}
		valid, err := g.Tokens.ValidateToken(ctx, req.Token, req.Room)
		if err != nil {
			log.Error().Err(err).Str("module", "app.gate").Str("room", string(req.Room)).Msg("token lookup failed")
			return Verdict{Outcome: domain.TokenInvalid}
		}
		if !valid {
			return Verdict{Outcome: domain.TokenInvalid}
		}
		return Verdict{Outcome: domain.Enqueued, Room: room, Token: req.Token}
	case room.RequiresPassword():
		return Verdict{Outcome: domain.TokenRequired}
	default:
		return Verdict{Outcome: domain.Enqueued, Room: room}
	}
}
