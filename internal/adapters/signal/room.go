package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/core"
)

func (ctl *SignalWSController) handleCreateRoom(ctx context.Context, p *peer, msg inbound) {
	log.Info().Str("module", "signal").Str("sid", string(p.sid)).Str("room", msg.Room).Msg("create-room")
	_ = ctl.Orch.CreateRoom(ctx, p.sid, msg.Room, msg.Name)
}

// handleJoin falls back to the token stored in the cookie session by the
// consent form when the message carries none.
func (ctl *SignalWSController) handleJoin(ctx context.Context, p *peer, msg inbound) {
	token := msg.Token
	if token == "" {
		token = p.joinToken
	}
	ctl.Orch.Join(ctx, p.sid, orch.JoinRequest{
		Room:     msg.Room,
		Password: msg.Password,
		Token:    token,
		Name:     msg.Name,
	})
}

func (ctl *SignalWSController) handleAdmit(p *peer, msg inbound) {
	if msg.Target == "" {
		ctl.sendError(p, "missing target")
		return
	}
	_ = ctl.Orch.Admit(p.sid, msg.Room, core.SessionID(msg.Target))
}

func (ctl *SignalWSController) handleDeny(p *peer, msg inbound) {
	if msg.Target == "" {
		ctl.sendError(p, "missing target")
		return
	}
	_ = ctl.Orch.Deny(p.sid, msg.Room, core.SessionID(msg.Target))
}

func (ctl *SignalWSController) handleEndMeeting(p *peer, msg inbound) {
	log.Info().Str("module", "signal").Str("sid", string(p.sid)).Str("room", msg.Room).Msg("end-meeting")
	_ = ctl.Orch.EndMeeting(p.sid, msg.Room)
}
