package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	DefaultRoomCapacity = 5
	MaxRoomNameLen      = 128
	MaxChatMessageLen   = 2000
)

var (
	ErrInvalidRoomName = errors.New("invalid room name")
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomExpired     = errors.New("room expired")
	ErrRoomFull        = errors.New("room full")
	ErrRoomClosed      = errors.New("room closed")
	ErrNotHost         = errors.New("not the host of this room")
	ErrNotQueued       = errors.New("not in waiting room")
	ErrNotParticipant  = errors.New("not a participant")
	ErrTokenInUse      = errors.New("join token already presented")
	ErrAlreadyInRoom   = errors.New("already in room")
)

type RoomName string

func ParseRoomName(raw string) (RoomName, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > MaxRoomNameLen {
		return "", ErrInvalidRoomName
	}
	return RoomName(raw), nil
}

// ChatLine renders one transcript line the way summaries expect it.
func ChatLine(sender, text string) string {
	return sender + ": " + text
}

// DurationSeconds is the whole-second call length; zero when the call never started.
func DurationSeconds(startedAt *time.Time, endedAt time.Time) int64 {
	if startedAt == nil || endedAt.Before(*startedAt) {
		return 0
	}
	return int64(endedAt.Sub(*startedAt) / time.Second)
}
