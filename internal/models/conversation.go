package models

import "time"

// Conversation modes.
const (
	ModePersonal = "personal"
	ModeTeam     = "team"
)

// Message roles.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// Conversation is a coaching chat owned by exactly one user. Normal-flow
// removal is archival, not physical deletion.
type Conversation struct {
	ID           string    `gorm:"primaryKey;size:36"`
	OwnerID      string    `gorm:"size:36;not null;index"`
	Title        string    `gorm:"size:256"`
	Mode         string    `gorm:"size:16;default:personal"`
	LastActivity time.Time `gorm:"index"`
	Archived     bool      `gorm:"default:false;index"`
	Metadata     string    `gorm:"type:json"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Messages []Message `gorm:"foreignKey:ConversationID"`
}

// Message is a single turn in a conversation. Sequence is strictly
// increasing per conversation and defines display order.
type Message struct {
	ID             string `gorm:"primaryKey;size:36"`
	ConversationID string `gorm:"size:36;not null;index;uniqueIndex:idx_conv_seq"`
	Role           string `gorm:"size:8;not null"`
	Content        string `gorm:"type:text"`
	Sequence       int    `gorm:"not null;uniqueIndex:idx_conv_seq"`
	CreatedAt      time.Time
}
