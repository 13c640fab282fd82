package orch

import (
	"encoding/json"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// Server -> client event types.
const (
	EvHello              = "hello"
	EvCreated            = "created"
	EvRoomError          = "room-error"
	EvWaitingRoom        = "waiting-room"
	EvJoinError          = "join-error"
	EvGuestWaiting       = "guest-waiting"
	EvQueueUpdate        = "queue-update"
	EvQueuePosition      = "queue-position"
	EvAdmitted           = "admitted"
	EvDenied             = "denied"
	EvReady              = "ready"
	EvOffer              = "offer"
	EvAnswer             = "answer"
	EvCandidate          = "candidate"
	EvChatMessage        = "chat-message"
	EvUserName           = "user-name"
	EvHandRaised         = "hand-raised"
	EvHandLowered        = "hand-lowered"
	EvHandLoweredConfirm = "hand-lowered-confirm"
	EvMeetingEnded       = "meeting-ended"
	EvUserDisconnected   = "user-disconnected"
	EvError              = "error"
)

// Reasons carried by meeting-ended.
const (
	EndedByHost   = "ended-by-host"
	EndedHostLeft = "host-disconnected"
	EndedExpired  = "expired"
	EndedReplaced = "replaced"
	EndedShutdown = "server-shutdown"
)

type event interface{ kind() string }

type envelope struct {
	Type string `json:"type"`
}

func (e envelope) kind() string { return e.Type }

func on(t string) envelope { return envelope{Type: t} }

type helloEvent struct {
	envelope
	ID core.SessionID `json:"id"`
}

type createdEvent struct {
	envelope
	Room       domain.RoomName    `json:"room"`
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type errorEvent struct {
	envelope
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type waitingRoomEvent struct {
	envelope
	Room     domain.RoomName `json:"room"`
	Position int             `json:"position"`
}

type guestWaitingEvent struct {
	envelope
	ID   core.SessionID  `json:"id"`
	Room domain.RoomName `json:"room"`
	Name string          `json:"name"`
}

type queueUpdateEvent struct {
	envelope
	Room  domain.RoomName    `json:"room"`
	Queue []core.QueuedGuest `json:"queue"`
}

type queuePositionEvent struct {
	envelope
	Room     domain.RoomName `json:"room"`
	Position int             `json:"position"`
	Total    int             `json:"total"`
}

type admittedEvent struct {
	envelope
	Room         domain.RoomName    `json:"room"`
	ICEServers   []webrtc.ICEServer `json:"iceServers"`
	Participants []domain.Member    `json:"participants"`
}

type roomEvent struct {
	envelope
	Room   domain.RoomName `json:"room"`
	Reason string          `json:"reason,omitempty"`
}

type relayEvent struct {
	envelope
	From    core.SessionID  `json:"from"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type chatEvent struct {
	envelope
	From       core.SessionID `json:"from"`
	SenderName string         `json:"senderName"`
	Message    string         `json:"message"`
	Timestamp  time.Time      `json:"timestamp"`
}

type memberEvent struct {
	envelope
	ID   core.SessionID `json:"id"`
	Name string         `json:"name,omitempty"`
}

func joinError(o domain.Outcome) errorEvent {
	return errorEvent{envelope: on(EvJoinError), Code: o.String(), Error: o.Reason()}
}

func roomError(msg string) errorEvent {
	return errorEvent{envelope: on(EvRoomError), Error: msg}
}

func plainError(msg string) errorEvent {
	return errorEvent{envelope: on(EvError), Error: msg}
}
