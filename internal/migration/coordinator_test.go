package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/huddleworks/huddle/internal/localstore"
	"github.com/huddleworks/huddle/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	u := models.User{ID: "u1", Email: "u1@example.com", Active: true}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return db
}

func seedHistory(t *testing.T, local *localstore.Store, convs []localstore.LocalConversation) {
	t.Helper()
	if err := local.Write(localstore.KeyChatHistory, convs); err != nil {
		t.Fatalf("seed history: %v", err)
	}
}

func countRows(t *testing.T, db *gorm.DB) (conversations, messages int64) {
	t.Helper()
	db.Model(&models.Conversation{}).Count(&conversations)
	db.Model(&models.Message{}).Count(&messages)
	return
}

func TestMigrate_HappyPath(t *testing.T) {
	db := testDB(t)
	port := localstore.NewMemoryPort()
	local := localstore.New(port)
	seedHistory(t, local, []localstore.LocalConversation{
		{ID: "l1", Title: "Sprint retro", Mode: "team", Messages: []localstore.LocalMessage{
			{Role: "user", Content: "how did it go"},
			{Role: "ai", Content: "let's review"},
		}},
		{ID: "l2", Title: "Career chat", Mode: "personal", Messages: []localstore.LocalMessage{
			{Role: "user", Content: "growth plan?"},
		}},
	})

	c := New(db, local)
	res, err := c.Migrate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.ConversationsCreated != 2 || res.MessagesCreated != 3 {
		t.Errorf("result = %+v", res)
	}

	convs, msgs := countRows(t, db)
	if convs != 2 || msgs != 3 {
		t.Errorf("rows: conversations=%d messages=%d", convs, msgs)
	}

	if !local.MigrationStatus().Completed {
		t.Error("migration status not completed after success")
	}
	if _, found, _ := port.Get(localstore.KeyChatHistory); found {
		t.Error("local blob not cleared after success")
	}
}

func TestMigrate_IdempotentAfterCompletion(t *testing.T) {
	db := testDB(t)
	local := localstore.New(localstore.NewMemoryPort())
	seedHistory(t, local, []localstore.LocalConversation{
		{ID: "l1", Title: "T", Mode: "personal", Messages: []localstore.LocalMessage{{Role: "user", Content: "x"}}},
	})

	c := New(db, local)
	if _, err := c.Migrate(context.Background(), "u1"); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	before, beforeMsgs := countRows(t, db)

	res, err := c.Migrate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if !res.Success || res.ConversationsCreated != 0 || res.MessagesCreated != 0 {
		t.Errorf("second result = %+v", res)
	}

	after, afterMsgs := countRows(t, db)
	if after != before || afterMsgs != beforeMsgs {
		t.Errorf("second migrate created rows: %d->%d conversations, %d->%d messages",
			before, after, beforeMsgs, afterMsgs)
	}
}

func TestMigrate_PartialFailure(t *testing.T) {
	db := testDB(t)
	port := localstore.NewMemoryPort()
	local := localstore.New(port)

	// 2 of 5 items carry a role the store rejects, so they fail to persist.
	bad := []localstore.LocalMessage{{Role: "system", Content: "nope"}}
	good := []localstore.LocalMessage{{Role: "user", Content: "ok"}}
	seedHistory(t, local, []localstore.LocalConversation{
		{ID: "l1", Title: "A", Mode: "personal", Messages: good},
		{ID: "l2", Title: "B", Mode: "personal", Messages: bad},
		{ID: "l3", Title: "C", Mode: "team", Messages: good},
		{ID: "l4", Title: "D", Mode: "personal", Messages: bad},
		{ID: "l5", Title: "E", Mode: "team", Messages: good},
	})

	c := New(db, local)
	res, err := c.Migrate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Error("Success = true with failed items")
	}
	if res.ConversationsCreated != 3 {
		t.Errorf("ConversationsCreated = %d, want 3", res.ConversationsCreated)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("len(Errors) = %d, want 2", len(res.Errors))
	}
	if res.Errors[0].SourceID != "l2" || res.Errors[1].SourceID != "l4" {
		t.Errorf("error keys = %+v", res.Errors)
	}

	// Failed items must not leave partial conversations behind.
	convs, _ := countRows(t, db)
	if convs != 3 {
		t.Errorf("conversations = %d, want 3", convs)
	}

	// Local state preserved for retry.
	if local.MigrationStatus().Completed {
		t.Error("status completed despite failures")
	}
	if _, found, _ := port.Get(localstore.KeyChatHistory); !found {
		t.Error("local blob cleared despite failures")
	}
}

func TestMigrate_EmptyHistory(t *testing.T) {
	db := testDB(t)
	local := localstore.New(localstore.NewMemoryPort())

	c := New(db, local)
	res, err := c.Migrate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.ConversationsCreated != 0 {
		t.Errorf("result = %+v", res)
	}
	if !local.MigrationStatus().Completed {
		t.Error("empty migration did not complete")
	}
}

func TestMigrate_UnusableBlob(t *testing.T) {
	db := testDB(t)
	port := localstore.NewMemoryPort()
	if err := port.Set(localstore.KeyChatHistory, []byte("%%% hopeless %%%")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	local := localstore.New(port)

	c := New(db, local)
	_, err := c.Migrate(context.Background(), "u1")
	if !errors.Is(err, ErrNoUsableData) {
		t.Fatalf("err = %v, want ErrNoUsableData", err)
	}

	// Raw blob untouched for manual inspection.
	if _, found, _ := port.Get(localstore.KeyChatHistory); !found {
		t.Error("raw blob removed after hard failure")
	}
}

func TestMigrate_RejectsOverlappingCall(t *testing.T) {
	db := testDB(t)
	local := localstore.New(localstore.NewMemoryPort())
	c := New(db, local)

	c.mu.Lock()
	c.inFlight = true
	c.mu.Unlock()

	_, err := c.Migrate(context.Background(), "u1")
	if !errors.Is(err, ErrInFlight) {
		t.Errorf("err = %v, want ErrInFlight", err)
	}
}

func TestMigrate_CoercesUnknownMode(t *testing.T) {
	db := testDB(t)
	local := localstore.New(localstore.NewMemoryPort())
	seedHistory(t, local, []localstore.LocalConversation{
		{ID: "l1", Title: "T", Mode: "legacy", Messages: nil},
	})

	c := New(db, local)
	res, err := c.Migrate(context.Background(), "u1")
	if err != nil || !res.Success {
		t.Fatalf("res=%+v err=%v", res, err)
	}

	var conv models.Conversation
	if err := db.First(&conv).Error; err != nil {
		t.Fatalf("load conversation: %v", err)
	}
	if conv.Mode != models.ModePersonal {
		t.Errorf("Mode = %q, want personal", conv.Mode)
	}
}
