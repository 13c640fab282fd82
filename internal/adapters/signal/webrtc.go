package signal

import "github.com/dkeye/Consult/internal/core"

// Signaling payloads are opaque here; the browsers own SDP and ICE.

func (ctl *SignalWSController) handleRelay(p *peer, msg inbound) {
	ctl.Orch.Relay(p.sid, msg.Type, msg.Room, core.SessionID(msg.Target), msg.Payload)
}

func (ctl *SignalWSController) handleReady(p *peer, msg inbound) {
	ctl.Orch.Ready(p.sid, msg.Room)
}
