package core

import "github.com/dkeye/Consult/internal/domain"

type memberSession struct {
	meta   *domain.Participant
	signal SignalConnection
}

func NewMemberSession(meta *domain.Participant) MemberSession {
	return &memberSession{meta: meta}
}

func (m *memberSession) Meta() *domain.Participant { return m.meta }
func (m *memberSession) Signal() SignalConnection  { return m.signal }

func (m *memberSession) UpdateSignal(s SignalConnection) MemberSession {
	m.signal = s
	return m
}
