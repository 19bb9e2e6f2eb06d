package models

import "time"

// ConversationBackup is an immutable point-in-time copy of a user's
// conversation set. Rows are append-only and never updated after creation.
type ConversationBackup struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:36;not null;index"`
	Source    string `gorm:"size:32"` // e.g. "client-export", "pre-migration"
	Payload   string `gorm:"type:text"`
	CreatedAt time.Time
}
