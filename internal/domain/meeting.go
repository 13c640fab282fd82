package domain

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrTokenUsed       = errors.New("join token invalid or already used")
)

// Meeting is the persisted record an operator provisions ahead of a consultation.
type Meeting struct {
	RoomName        RoomName   `json:"room_name"`
	Password        string     `json:"-"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
	Summary         *string    `json:"summary,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (m *Meeting) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && m.ExpiresAt.Before(now)
}

// Consent is the out-of-band form a patient signs before receiving a join token.
type Consent struct {
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Signature  string   `json:"signature"`
	SignedDate string   `json:"signed_date"`
	Email      string   `json:"email"`
	RoomName   RoomName `json:"room_name"`
}

// ChatMessage is one persisted chat line.
type ChatMessage struct {
	SenderName string    `json:"sender_name"`
	Message    string    `json:"message"`
	SentAt     time.Time `json:"sent_at"`
}

// HashPassword produces the stored form of a meeting password.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// PasswordMatches compares a submitted password against the stored form.
// Records written before hashing was introduced hold the plain text.
func PasswordMatches(stored, given string) bool {
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// FormatDuration renders seconds as "1h 2m 3s", "2m 3s" or "3s".
func FormatDuration(sec int64) string {
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
