package core

import (
	"context"
	"time"

	"github.com/dkeye/Consult/internal/domain"
)

// TokenValidator peeks at a join token without consuming it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string, room domain.RoomName) (bool, error)
}

// Store is the persistence collaborator. A nil error means the write was acknowledged.
type Store interface {
	TokenValidator
	GetMeeting(ctx context.Context, room domain.RoomName) (*domain.Meeting, error)
	MarkCallStarted(ctx context.Context, room domain.RoomName, at time.Time) error
	ConsumeToken(ctx context.Context, token string) error
	AppendChatMessage(ctx context.Context, room domain.RoomName, sender, text string, at time.Time) error
	ChatTranscript(ctx context.Context, room domain.RoomName) ([]string, error)
	FinalizeMeeting(ctx context.Context, room domain.RoomName, endedAt time.Time, durationSeconds int64, summary *string) error
}

// Summarizer turns a chat transcript into a short clinical summary.
type Summarizer interface {
	Summarize(ctx context.Context, lines []string) (string, error)
}

// Notifier is told once per room lifetime that the meeting is over.
type Notifier interface {
	NotifyEnd(ctx context.Context, room domain.RoomName, summary *string, durationSeconds int64) error
}

// ContactSource resolves the last known patient contact for a room.
type ContactSource interface {
	LatestPatientContact(ctx context.Context, room domain.RoomName) (string, error)
}
