// Package guard is the policy layer gating destructive operations: it
// refuses deletes that would lose dependent data, offers soft-delete, and
// audits for orphaned records.
package guard

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/huddleworks/huddle/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the assessed or deleted owner is missing.
var ErrNotFound = errors.New("guard: owner not found")

// Importance summarizes the data that depends on an owner.
type Importance struct {
	TeamMembers   int64
	Conversations int64
	Messages      int64
	Labels        []string // human-readable non-zero categories
}

// HasDependents reports whether any dependent rows exist.
func (i Importance) HasDependents() bool {
	return i.TeamMembers > 0 || i.Conversations > 0 || i.Messages > 0
}

// AssessImportance counts rows that depend on ownerID. The counts run
// inside one transaction so they describe a single snapshot; callers
// deciding on the result should use SafeDelete, which re-assesses inside
// the same transaction as the write.
func AssessImportance(db *gorm.DB, ownerID string) (Importance, error) {
	var imp Importance
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		imp, err = assess(tx, ownerID)
		return err
	})
	return imp, err
}

func assess(tx *gorm.DB, ownerID string) (Importance, error) {
	var owners int64
	if err := tx.Model(&models.User{}).Where("id = ?", ownerID).Count(&owners).Error; err != nil {
		return Importance{}, fmt.Errorf("guard: check owner %s: %w", ownerID, err)
	}
	if owners == 0 {
		return Importance{}, fmt.Errorf("%w: %s", ErrNotFound, ownerID)
	}

	var imp Importance
	if err := tx.Model(&models.TeamMember{}).
		Where("user_id = ?", ownerID).Count(&imp.TeamMembers).Error; err != nil {
		return Importance{}, fmt.Errorf("guard: count team members: %w", err)
	}
	if err := tx.Model(&models.Conversation{}).
		Where("owner_id = ?", ownerID).Count(&imp.Conversations).Error; err != nil {
		return Importance{}, fmt.Errorf("guard: count conversations: %w", err)
	}
	if err := tx.Model(&models.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.owner_id = ?", ownerID).Count(&imp.Messages).Error; err != nil {
		return Importance{}, fmt.Errorf("guard: count messages: %w", err)
	}

	imp.Labels = importanceLabels(imp)
	return imp, nil
}

func importanceLabels(imp Importance) []string {
	var labels []string
	if imp.TeamMembers > 0 {
		labels = append(labels, fmt.Sprintf("%d team member(s)", imp.TeamMembers))
	}
	if imp.Conversations > 0 {
		labels = append(labels, fmt.Sprintf("%d conversation(s)", imp.Conversations))
	}
	if imp.Messages > 0 {
		labels = append(labels, fmt.Sprintf("%d message(s)", imp.Messages))
	}
	return labels
}

// Options parameterizes SafeDelete.
type Options struct {
	// PreserveData authorizes a soft delete: the owner is marked inactive
	// and every dependent row is kept.
	PreserveData bool
	// Reason and ActorID go to the audit log.
	Reason  string
	ActorID string
}

// Outcome is the result of a SafeDelete call. A refusal is a first-class
// outcome (Success=false with a Reason), not an error: refusing is the
// guard doing its job.
type Outcome struct {
	Success     bool
	SoftDeleted bool
	Reason      string
	Importance  Importance
}

// SafeDelete removes an owner under the protection policy. The dependency
// assessment and the resulting write happen inside one transaction, so a
// concurrent insert between counting and deciding cannot invalidate the
// decision.
//
// Physical deletion of an owner is not a capability of this package. The
// only write SafeDelete ever performs is the soft-delete mark; a
// deployment needing true hard deletes must build a separately audited
// path for them.
func SafeDelete(db *gorm.DB, ownerID string, opts Options) (Outcome, error) {
	var out Outcome
	err := db.Transaction(func(tx *gorm.DB) error {
		imp, err := assess(tx, ownerID)
		if err != nil {
			return err
		}
		out.Importance = imp

		if imp.HasDependents() && !opts.PreserveData {
			out.Reason = fmt.Sprintf(
				"refusing to delete owner %s with dependent data: %s; pass preserve-data for a soft delete",
				ownerID, strings.Join(imp.Labels, ", "))
			return nil
		}

		now := time.Now()
		result := tx.Model(&models.User{}).Where("id = ?", ownerID).
			Updates(map[string]interface{}{"active": false, "deleted_at": now})
		if result.Error != nil {
			return fmt.Errorf("guard: soft delete %s: %w", ownerID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, ownerID)
		}

		out.Success = true
		out.SoftDeleted = true
		out.Reason = fmt.Sprintf("owner %s soft-deleted; %d dependent row(s) preserved",
			ownerID, imp.TeamMembers+imp.Conversations+imp.Messages)
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	log.Printf("guard: safe-delete owner=%s actor=%s success=%v reason=%q audit=%q",
		ownerID, opts.ActorID, out.Success, out.Reason, opts.Reason)
	return out, nil
}
