// Package store is the SQLite persistence collaborator.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dkeye/Consult/internal/domain"
)

type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db)
}

func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&meetingRecord{}, &consentRecord{}, &chatMessageRecord{}, &joinTokenRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("module", "adapters.store").Msg("schema ready")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toMeeting(r *meetingRecord) *domain.Meeting {
	return &domain.Meeting{
		RoomName:        domain.RoomName(r.RoomName),
		Password:        r.Password,
		ExpiresAt:       r.ExpiresAt,
		StartedAt:       r.StartedAt,
		EndedAt:         r.EndedAt,
		DurationSeconds: r.DurationSeconds,
		Summary:         r.Summary,
		CreatedAt:       r.CreatedAt,
	}
}

// GetMeeting returns the most recently provisioned meeting for room.
func (s *Store) GetMeeting(ctx context.Context, room domain.RoomName) (*domain.Meeting, error) {
	var rec meetingRecord
	err := s.db.WithContext(ctx).
		Where("room_name = ?", string(room)).
		Order("id DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get meeting %s: %w", room, err)
	}
	return toMeeting(&rec), nil
}

// CreateMeeting provisions a password-protected room. The password is stored hashed.
func (s *Store) CreateMeeting(ctx context.Context, room domain.RoomName, password string, expiresAt *time.Time) (*domain.Meeting, error) {
	hashed, err := domain.HashPassword(password)
	if err != nil {
		return nil, err
	}
	rec := meetingRecord{RoomName: string(room), Password: hashed, ExpiresAt: expiresAt}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("create meeting %s: %w", room, err)
	}
	return toMeeting(&rec), nil
}

func (s *Store) ListMeetings(ctx context.Context) ([]domain.Meeting, error) {
	var recs []meetingRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	out := make([]domain.Meeting, 0, len(recs))
	for i := range recs {
		out = append(out, *toMeeting(&recs[i]))
	}
	return out, nil
}

func (s *Store) MarkCallStarted(ctx context.Context, room domain.RoomName, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&meetingRecord{}).
		Where("room_name = ?", string(room)).
		Update("started_at", at).Error
	if err != nil {
		return fmt.Errorf("mark call started %s: %w", room, err)
	}
	return nil
}

func (s *Store) FinalizeMeeting(ctx context.Context, room domain.RoomName, endedAt time.Time, durationSeconds int64, summary *string) error {
	err := s.db.WithContext(ctx).Model(&meetingRecord{}).
		Where("room_name = ?", string(room)).
		Updates(map[string]any{
			"ended_at":         endedAt,
			"duration_seconds": durationSeconds,
			"summary":          summary,
		}).Error
	if err != nil {
		return fmt.Errorf("finalize meeting %s: %w", room, err)
	}
	return nil
}

// SubmitConsent records the form and, when it names a room, issues a one-time join token.
func (s *Store) SubmitConsent(ctx context.Context, c domain.Consent) (uint, string, error) {
	rec := consentRecord{
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Signature:  c.Signature,
		SignedDate: c.SignedDate,
		Email:      c.Email,
		RoomName:   string(c.RoomName),
	}
	var token string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		if c.RoomName == "" {
			return nil
		}
		token = uuid.NewString()
		return tx.Create(&joinTokenRecord{RoomName: string(c.RoomName), Token: token}).Error
	})
	if err != nil {
		return 0, "", fmt.Errorf("submit consent: %w", err)
	}
	return rec.ID, token, nil
}

func (s *Store) ListConsents(ctx context.Context) ([]domain.Consent, error) {
	var recs []consentRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	out := make([]domain.Consent, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.Consent{
			FirstName:  r.FirstName,
			LastName:   r.LastName,
			Signature:  r.Signature,
			SignedDate: r.SignedDate,
			Email:      r.Email,
			RoomName:   domain.RoomName(r.RoomName),
		})
	}
	return out, nil
}

// ValidateToken only reads; the token stays usable until ConsumeToken.
func (s *Store) ValidateToken(ctx context.Context, token string, room domain.RoomName) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&joinTokenRecord{}).
		Where("token = ? AND room_name = ? AND used = ?", token, string(room), false).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("validate token: %w", err)
	}
	return n > 0, nil
}

// ConsumeToken flips used exactly once. A second call returns domain.ErrTokenUsed.
func (s *Store) ConsumeToken(ctx context.Context, token string) error {
	res := s.db.WithContext(ctx).Model(&joinTokenRecord{}).
		Where("token = ? AND used = ?", token, false).
		Update("used", true)
	if res.Error != nil {
		return fmt.Errorf("consume token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrTokenUsed
	}
	return nil
}

func (s *Store) AppendChatMessage(ctx context.Context, room domain.RoomName, sender, text string, at time.Time) error {
	rec := chatMessageRecord{RoomName: string(room), SenderName: sender, Message: text, SentAt: at}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

func (s *Store) ChatMessages(ctx context.Context, room domain.RoomName) ([]domain.ChatMessage, error) {
	var recs []chatMessageRecord
	err := s.db.WithContext(ctx).
		Where("room_name = ?", string(room)).
		Order("sent_at ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("chat messages %s: %w", room, err)
	}
	out := make([]domain.ChatMessage, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.ChatMessage{SenderName: r.SenderName, Message: r.Message, SentAt: r.SentAt})
	}
	return out, nil
}

func (s *Store) ChatTranscript(ctx context.Context, room domain.RoomName) ([]string, error) {
	msgs, err := s.ChatMessages(ctx, room)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, domain.ChatLine(m.SenderName, m.Message))
	}
	return lines, nil
}

// LatestPatientContact is the email on the newest consent for room, or "".
func (s *Store) LatestPatientContact(ctx context.Context, room domain.RoomName) (string, error) {
	var rec consentRecord
	err := s.db.WithContext(ctx).
		Where("room_name = ? AND email <> ''", string(room)).
		Order("created_at DESC, id DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest contact %s: %w", room, err)
	}
	return rec.Email, nil
}
