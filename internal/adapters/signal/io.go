package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// inbound is the union of every client -> server message.
type inbound struct {
	Type     string          `json:"type"`
	Room     string          `json:"room"`
	Name     string          `json:"name"`
	Password string          `json:"password"`
	Token    string          `json:"token"`
	Target   string          `json:"target"`
	Payload  json.RawMessage `json:"payload"`
	Message  string          `json:"message"`
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

// readPump owns the connection's lifetime: when it returns, the disconnect
// cascade runs exactly once.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, p *peer) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(p.sid)).Msg("readPump closing")
		cancel()
		p.conn.Close()
		ctl.Orch.OnDisconnect(p.sid)
	}()

	p.conn.conn.SetReadLimit(ctl.ReadLimit)
	_ = p.conn.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	p.conn.conn.SetPongHandler(func(string) error {
		return p.conn.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	})

	for {
		_, data, err := p.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(p.sid)).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(ctx, p, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, p *peer, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(p.sid)).Msg("bad json")
		ctl.sendError(p, "bad_payload")
		return
	}

	switch msg.Type {
	case "create-room":
		ctl.handleCreateRoom(ctx, p, msg)
	case "join-request":
		ctl.handleJoin(ctx, p, msg)
	case "admit-guest":
		ctl.handleAdmit(p, msg)
	case "deny-guest":
		ctl.handleDeny(p, msg)
	case "end-meeting":
		ctl.handleEndMeeting(p, msg)
	case "offer", "answer", "candidate":
		ctl.handleRelay(p, msg)
	case "ready":
		ctl.handleReady(p, msg)
	case "chat-message":
		ctl.handleChat(p, msg)
	case "user-name":
		ctl.handleRename(p, msg)
	case "raise-hand":
		ctl.handleRaiseHand(p, msg)
	case "lower-hand":
		ctl.handleLowerHand(p, msg)
	case "lower-hand-for":
		ctl.handleLowerHandFor(p, msg)
	case "whoami":
		ctl.handleWhoAmI(p)
	case "ping":
		ctl.handlePing(p)
	default:
		log.Warn().Str("module", "signal").Str("type", msg.Type).Msg("unknown signal")
	}
}

func (ctl *SignalWSController) sendJSON(p *peer, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = p.conn.TrySend(b)
}

func (ctl *SignalWSController) sendError(p *peer, msg string) {
	ctl.sendJSON(p, map[string]any{
		"type":  "error",
		"error": msg,
	})
}
