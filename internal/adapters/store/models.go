package store

import "time"

type meetingRecord struct {
	ID              uint       `gorm:"primaryKey"`
	RoomName        string     `gorm:"index;size:128;not null"`
	Password        string     `gorm:"not null;default:''"`
	ExpiresAt       *time.Time `gorm:"index"`
	StartedAt       *time.Time
	EndedAt         *time.Time
	DurationSeconds *int64
	Summary         *string `gorm:"type:text"`
	CreatedAt       time.Time
}

func (meetingRecord) TableName() string { return "meetings" }

type consentRecord struct {
	ID         uint   `gorm:"primaryKey"`
	FirstName  string `gorm:"size:255;not null"`
	LastName   string `gorm:"size:255;not null"`
	Signature  string `gorm:"type:text;not null"`
	SignedDate string `gorm:"size:64;not null"`
	Email      string `gorm:"size:255;not null;default:''"`
	RoomName   string `gorm:"index;size:128;not null;default:''"`
	CreatedAt  time.Time
}

func (consentRecord) TableName() string { return "consents" }

type chatMessageRecord struct {
	ID         uint      `gorm:"primaryKey"`
	RoomName   string    `gorm:"index:idx_chat_room;size:128;not null"`
	SenderName string    `gorm:"size:255;not null"`
	Message    string    `gorm:"type:text;not null"`
	SentAt     time.Time `gorm:"index:idx_chat_room;not null"`
}

func (chatMessageRecord) TableName() string { return "chat_messages" }

type joinTokenRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RoomName  string `gorm:"index;size:128;not null"`
	Token     string `gorm:"uniqueIndex;size:64;not null"`
	Used      bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (joinTokenRecord) TableName() string { return "join_tokens" }
