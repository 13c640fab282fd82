package core

import "github.com/dkeye/Consult/internal/domain"

// SessionID is the opaque connection identifier assigned at transport connect.
type SessionID string

// MemberSession binds domain.Participant and its transport endpoint.
// This is what the coordinator addresses when it routes a message.
type MemberSession interface {
	Meta() *domain.Participant
	Signal() SignalConnection
	UpdateSignal(SignalConnection) MemberSession
}
