package signal

import (
	"slices"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

func (ctl *SignalWSController) handleRename(p *peer, msg inbound) {
	if msg.Name == "" {
		ctl.sendError(p, "empty name")
		return
	}
	if err := ctl.Orch.SetName(p.sid, msg.Room, msg.Name); err != nil {
		return
	}
	ctl.handleWhoAmI(p)
}

func (ctl *SignalWSController) handleWhoAmI(p *peer) {
	rooms := ctl.Orch.Registry.RoomsOf(p.sid)
	slices.Sort(rooms)
	resp := struct {
		Type  string            `json:"type"`
		ID    core.SessionID    `json:"id"`
		Name  string            `json:"name"`
		Rooms []domain.RoomName `json:"rooms"`
	}{
		Type:  "whoami",
		ID:    p.sid,
		Name:  ctl.Orch.Registry.DisplayName(p.sid),
		Rooms: rooms,
	}
	ctl.sendJSON(p, resp)
}

func (ctl *SignalWSController) handleChat(p *peer, msg inbound) {
	ctl.Orch.Chat(p.sid, msg.Room, msg.Message)
}

func (ctl *SignalWSController) handleRaiseHand(p *peer, msg inbound) {
	ctl.Orch.RaiseHand(p.sid, msg.Room)
}

func (ctl *SignalWSController) handleLowerHand(p *peer, msg inbound) {
	ctl.Orch.LowerHand(p.sid, msg.Room)
}

func (ctl *SignalWSController) handleLowerHandFor(p *peer, msg inbound) {
	_ = ctl.Orch.LowerHandFor(p.sid, msg.Room, core.SessionID(msg.Target))
}
