// Package migration moves recovered client-local chat history into durable
// storage exactly once.
package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/huddleworks/huddle/internal/localstore"
	"github.com/huddleworks/huddle/internal/models"
	"github.com/huddleworks/huddle/internal/store"
	"gorm.io/gorm"
)

// Sentinel errors.
var (
	// ErrInFlight is returned when a migration attempt overlaps another.
	// At most one attempt runs per coordinator; overlapping calls could
	// duplicate conversation writes.
	ErrInFlight = errors.New("migration: already in progress")

	// ErrNoUsableData is returned when recovery of the local blob yields
	// nothing migratable. The raw blob is left untouched.
	ErrNoUsableData = errors.New("migration: no usable data recovered")
)

// ItemError records the failure of a single source conversation. The batch
// continues past item failures.
type ItemError struct {
	SourceID string `json:"sourceId"`
	Title    string `json:"title"`
	Reason   string `json:"reason"`
}

// Result reports the outcome of one migration attempt. Success is true only
// when every source item persisted.
type Result struct {
	Success              bool        `json:"success"`
	ConversationsCreated int         `json:"conversationsCreated"`
	MessagesCreated      int         `json:"messagesCreated"`
	Errors               []ItemError `json:"errors,omitempty"`
}

// Coordinator migrates a client's local chat history into the conversation
// store. It is idempotent: once the local migration flag reads completed,
// further calls are no-ops. The state machine per client is
// NOT_STARTED -> IN_PROGRESS -> COMPLETED, with failures returning to
// NOT_STARTED for retry.
type Coordinator struct {
	db    *gorm.DB
	local *localstore.Store

	mu       sync.Mutex
	inFlight bool
}

// New creates a Coordinator over the given database and local store.
func New(db *gorm.DB, local *localstore.Store) *Coordinator {
	return &Coordinator{db: db, local: local}
}

// InFlight reports whether a migration attempt is currently running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Migrate recovers the local chat-history blob and persists it for userID.
// Item failures are reported in Result.Errors and do not abort the batch.
// The migration flag is set and the local blob cleared only on full
// success; any failure leaves both untouched so a retry loses nothing.
func (c *Coordinator) Migrate(ctx context.Context, userID string) (Result, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Result{}, ErrInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	if c.local.MigrationStatus().Completed {
		return Result{Success: true}, nil
	}

	history, err := c.local.ChatHistory()
	if err != nil {
		if errors.Is(err, localstore.ErrCorrupted) {
			return Result{}, fmt.Errorf("%w: %v", ErrNoUsableData, err)
		}
		return Result{}, fmt.Errorf("migration: read local history: %w", err)
	}

	db := c.db.WithContext(ctx)
	var res Result
	for i, conv := range history {
		created, err := migrateConversation(db, userID, conv)
		if err != nil {
			res.Errors = append(res.Errors, ItemError{
				SourceID: itemKey(conv, i),
				Title:    conv.Title,
				Reason:   err.Error(),
			})
			continue
		}
		res.ConversationsCreated++
		res.MessagesCreated += created
	}

	res.Success = len(res.Errors) == 0
	if !res.Success {
		return res, nil
	}

	status := localstore.MigrationStatus{
		Completed: true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.local.SetMigrationStatus(status); err != nil {
		// Conversations are durable but the flag didn't stick; the blob
		// stays so the idempotence of the next attempt depends on the flag
		// write succeeding then. Surface this as a hard error.
		return res, fmt.Errorf("migration: persist status: %w", err)
	}
	if err := c.local.Remove(localstore.KeyChatHistory); err != nil {
		return res, fmt.Errorf("migration: clear local blob: %w", err)
	}
	return res, nil
}

// migrateConversation persists one source conversation and its messages in
// a single transaction, returning the number of messages created. An error
// rolls the whole item back so partial conversations never land.
func migrateConversation(db *gorm.DB, userID string, conv localstore.LocalConversation) (int, error) {
	mode := conv.Mode
	if mode != models.ModePersonal && mode != models.ModeTeam {
		mode = models.ModePersonal
	}

	created := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		durable, err := store.Create(tx, userID, conv.Title, mode)
		if err != nil {
			return err
		}
		for _, m := range conv.Messages {
			if _, err := store.AppendMessage(tx, durable.ID, m.Role, m.Content); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// itemKey identifies a source item in error reports, falling back to the
// batch position when the local record has no id.
func itemKey(conv localstore.LocalConversation, index int) string {
	if conv.ID != "" {
		return conv.ID
	}
	return fmt.Sprintf("item-%d", index)
}
