package localstore

import (
	"encoding/json"
	"fmt"
)

// LocalConversation is a conversation record as held in the client-local
// chat-history blob. The server never mutates these; they are read once
// during migration.
type LocalConversation struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Mode     string         `json:"mode"`
	Messages []LocalMessage `json:"messages"`
}

// LocalMessage is a single turn inside a LocalConversation.
type LocalMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MigrationStatus tracks whether the local blob has been migrated to the
// server. Completed is monotonic: once true it is never reset by normal
// operation.
type MigrationStatus struct {
	Completed bool   `json:"completed"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Store reads and writes the client-local blob through an injected port.
// All failures surface as typed errors; no platform fault escapes raw.
type Store struct {
	port StoragePort
}

// New creates a Store over the given port.
func New(port StoragePort) *Store {
	return &Store{port: port}
}

// Read returns the JSON value stored under key. If the raw bytes fail to
// decode, the recovery protocol is applied; the returned bytes are then the
// repaired JSON. The stored raw bytes are never modified by recovery, so a
// corrupted value stays available for manual inspection.
func (s *Store) Read(key string) (json.RawMessage, error) {
	raw, found, err := s.port.Get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw), nil
	}

	recovered, err := RecoverJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: key %s: %v", ErrCorrupted, key, err)
	}
	return recovered, nil
}

// Write marshals v and stores it under key. It never panics; port failures
// come back as ErrUnavailable or ErrQuotaExceeded.
func (s *Store) Write(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("localstore: marshal %s: %w", key, err)
	}
	return s.port.Set(key, data)
}

// Remove deletes key from the store.
func (s *Store) Remove(key string) error {
	return s.port.Remove(key)
}

// ChatHistory reads and decodes the chat-history blob. A value that decodes
// but is not a JSON array is reclassified as corrupted rather than coerced.
// A missing key returns an empty history.
func (s *Store) ChatHistory() ([]LocalConversation, error) {
	raw, found, err := s.port.Get(KeyChatHistory)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	if json.Valid(raw) {
		var convs []LocalConversation
		if err := json.Unmarshal(raw, &convs); err != nil {
			// Valid JSON but not a conversation array.
			return nil, fmt.Errorf("%w: chat history is not an array", ErrCorrupted)
		}
		return convs, nil
	}

	convs, err := RecoverHistory(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return convs, nil
}

// MigrationStatus reads the migration flag. A missing or unreadable status
// is reported as not completed; migration is safe to re-run in that case
// because the server-side coordinator is idempotent.
func (s *Store) MigrationStatus() MigrationStatus {
	raw, found, err := s.port.Get(KeyMigrationStatus)
	if err != nil || !found {
		return MigrationStatus{}
	}
	var ms MigrationStatus
	if err := json.Unmarshal(raw, &ms); err != nil {
		return MigrationStatus{}
	}
	return ms
}

// SetMigrationStatus persists the migration flag.
func (s *Store) SetMigrationStatus(ms MigrationStatus) error {
	return s.Write(KeyMigrationStatus, ms)
}
