package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/domain"
)

const DefaultSubjectPrefix = "consult"

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// Connect dials NATS and keeps reconnecting for the life of the process.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Str("module", "adapters.notify").Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("module", "adapters.notify").Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

type meetingEnded struct {
	Room            domain.RoomName `json:"room"`
	DurationSeconds int64           `json:"duration_seconds"`
	Summary         *string         `json:"summary"`
	Timestamp       int64           `json:"timestamp"`
}

// NATS publishes lifecycle events on <prefix>.meeting.ended.<room>.
type NATS struct {
	Conn   Publisher
	Prefix string
	Now    func() time.Time
}

func (n *NATS) Subject(room domain.RoomName) string {
	prefix := n.Prefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + ".meeting.ended." + subjectToken(string(room))
}

// subjectToken keeps a room name inside one subject token.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

func (n *NATS) NotifyEnd(_ context.Context, room domain.RoomName, summary *string, durationSeconds int64) error {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	data, err := json.Marshal(meetingEnded{
		Room:            room,
		DurationSeconds: durationSeconds,
		Summary:         summary,
		Timestamp:       now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal meeting ended: %w", err)
	}
	subj := n.Subject(room)
	if err := n.Conn.Publish(subj, data); err != nil {
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	log.Debug().Str("module", "adapters.notify").Str("subject", subj).Msg("meeting ended published")
	return nil
}
