package app

import "github.com/dkeye/Consult/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(sid core.SessionID, event string) BackpressureAction
}

// SimplePolicy drops relay traffic, which the browser renegotiates anyway, and
// kicks connections that cannot keep up with lifecycle events.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(_ core.SessionID, event string) BackpressureAction {
	switch event {
	case "offer", "answer", "candidate", "ready", "chat-message", "user-name", "queue-update", "queue-position":
		return DropFrame
	}
	return KickMember
}
