package signal

func (ctl *SignalWSController) handlePing(p *peer) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(p, resp)
}
