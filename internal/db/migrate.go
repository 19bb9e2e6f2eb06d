package db

import (
	"fmt"

	"github.com/huddleworks/huddle/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration. Order matters
// for readability only; AutoMigrate resolves references itself.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.TeamMember{},
		&models.Conversation{},
		&models.Message{},
		&models.ConversationBackup{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// TableNames lists the durable tables tracked by the backup engine, in
// manifest order.
func TableNames() []string {
	return []string{"users", "team_members", "conversations", "messages", "conversation_backups"}
}
