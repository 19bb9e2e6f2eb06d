// Package store provides durable CRUD for conversations, messages, and
// conversation backups.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huddleworks/huddle/internal/models"
	"gorm.io/gorm"
)

// Sentinel errors returned by store operations.
var (
	ErrNotFound    = errors.New("store: not found")
	ErrInvalidMode = errors.New("store: invalid mode")
	ErrInvalidRole = errors.New("store: invalid role")
)

// Create inserts a new conversation for ownerID with LastActivity set to
// now. The owner must exist; mode must be personal or team.
func Create(db *gorm.DB, ownerID, title, mode string) (*models.Conversation, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("store: ownerID is required")
	}
	if mode != models.ModePersonal && mode != models.ModeTeam {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	var owners int64
	if err := db.Model(&models.User{}).Where("id = ?", ownerID).Count(&owners).Error; err != nil {
		return nil, fmt.Errorf("store: check owner %s: %w", ownerID, err)
	}
	if owners == 0 {
		return nil, fmt.Errorf("%w: owner %s", ErrNotFound, ownerID)
	}

	now := time.Now()
	conv := models.Conversation{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Title:        title,
		Mode:         mode,
		LastActivity: now,
		Metadata:     "{}",
	}
	if err := db.Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("store: create conversation: %w", err)
	}
	return &conv, nil
}

// AppendMessage adds the next message to a conversation. Sequence assignment
// and the parent LastActivity bump happen in one transaction, so sequences
// are strictly increasing per conversation even under concurrent appends.
func AppendMessage(db *gorm.DB, conversationID, role, content string) (*models.Message, error) {
	if role != models.RoleUser && role != models.RoleAI {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	var msg *models.Message
	err := db.Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, "id = ?", conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
			}
			return fmt.Errorf("load conversation: %w", err)
		}

		var maxSeq int
		if err := tx.Model(&models.Message{}).
			Where("conversation_id = ?", conversationID).
			Select("COALESCE(MAX(sequence), 0)").Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}

		msg = &models.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Role:           role,
			Content:        content,
			Sequence:       maxSeq + 1,
			CreatedAt:      time.Now(),
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		if err := tx.Model(&conv).Update("last_activity", time.Now()).Error; err != nil {
			return fmt.Errorf("bump last activity: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("store: append message: %w", err)
	}
	return msg, nil
}

// Archive marks a conversation archived. Archived conversations drop out of
// default listings but stay available for backup and audit.
func Archive(db *gorm.DB, conversationID string) error {
	result := db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("archived", true)
	if result.Error != nil {
		return fmt.Errorf("store: archive %s: %w", conversationID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	return nil
}

// List returns an owner's unarchived conversations, most recently active
// first, with a stable id tie-break.
func List(db *gorm.DB, ownerID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := db.Where("owner_id = ? AND archived = ?", ownerID, false).
		Order("last_activity DESC, id ASC").Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("store: list conversations for %s: %w", ownerID, err)
	}
	return convs, nil
}

// ListAll returns all of an owner's conversations including archived ones,
// for backup and audit flows.
func ListAll(db *gorm.DB, ownerID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := db.Where("owner_id = ?", ownerID).
		Order("last_activity DESC, id ASC").Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("store: list all conversations for %s: %w", ownerID, err)
	}
	return convs, nil
}

// Messages returns a conversation's messages in display order.
func Messages(db *gorm.DB, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := db.Where("conversation_id = ?", conversationID).
		Order("sequence ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("store: messages for %s: %w", conversationID, err)
	}
	return msgs, nil
}

// Delete physically removes a conversation and its messages in one
// transaction. This is the raw primitive: user-facing flows go through the
// guard package, which only ever soft-deletes owners and archives
// conversations.
func Delete(db *gorm.DB, conversationID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", conversationID).
			Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("store: delete messages for %s: %w", conversationID, err)
		}
		result := tx.Where("id = ?", conversationID).Delete(&models.Conversation{})
		if result.Error != nil {
			return fmt.Errorf("store: delete conversation %s: %w", conversationID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
		}
		return nil
	})
}

// RecordBackup appends an immutable conversation backup row. Backup rows
// are never updated after creation.
func RecordBackup(db *gorm.DB, userID, source, payload string) (*models.ConversationBackup, error) {
	if userID == "" {
		return nil, fmt.Errorf("store: userID is required")
	}
	b := models.ConversationBackup{
		ID:        uuid.NewString(),
		UserID:    userID,
		Source:    source,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if err := db.Create(&b).Error; err != nil {
		return nil, fmt.Errorf("store: record backup: %w", err)
	}
	return &b, nil
}
