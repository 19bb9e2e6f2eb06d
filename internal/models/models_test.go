package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

func TestConversation_Fields(t *testing.T) {
	typ := reflect.TypeOf(Conversation{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:36")
	assertGormTag(t, typ, "OwnerID", "not null")
	assertGormTag(t, typ, "OwnerID", "index")
	assertGormTag(t, typ, "Mode", "default:personal")
	assertGormTag(t, typ, "LastActivity", "index")
	assertGormTag(t, typ, "Archived", "default:false")
	assertGormTag(t, typ, "Metadata", "type:json")
}

func TestMessage_Fields(t *testing.T) {
	typ := reflect.TypeOf(Message{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ConversationID", "not null")
	assertGormTag(t, typ, "ConversationID", "uniqueIndex:idx_conv_seq")
	assertGormTag(t, typ, "Sequence", "uniqueIndex:idx_conv_seq")
	assertGormTag(t, typ, "Role", "size:8")
	assertGormTag(t, typ, "Content", "type:text")
}

func TestConversationBackup_Fields(t *testing.T) {
	typ := reflect.TypeOf(ConversationBackup{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "UserID", "not null")
	assertGormTag(t, typ, "UserID", "index")
	assertGormTag(t, typ, "Payload", "type:text")
}

func TestUser_SoftDeleteFields(t *testing.T) {
	typ := reflect.TypeOf(User{})

	assertGormTag(t, typ, "Active", "default:true")
	f, ok := typ.FieldByName("DeletedAt")
	if !ok {
		t.Fatal("User.DeletedAt: field not found")
	}
	if f.Type.String() != "*time.Time" {
		t.Errorf("User.DeletedAt type = %q, want *time.Time", f.Type.String())
	}
}

func TestModeConstants(t *testing.T) {
	if ModePersonal != "personal" || ModeTeam != "team" {
		t.Errorf("mode constants = %q, %q", ModePersonal, ModeTeam)
	}
	if RoleUser != "user" || RoleAI != "ai" {
		t.Errorf("role constants = %q, %q", RoleUser, RoleAI)
	}
}
