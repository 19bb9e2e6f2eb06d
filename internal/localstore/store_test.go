package localstore

import (
	"errors"
	"testing"
)

func TestRead_RoundTrip(t *testing.T) {
	port := NewMemoryPort()
	s := New(port)

	in := `[{"id":"c1","title":"T","mode":"personal","messages":[]}]`
	if err := port.Set(KeyChatHistory, []byte(in)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := s.Read(KeyChatHistory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != in {
		t.Errorf("Read = %q, want %q", out, in)
	}
}

func TestRead_MissingKey(t *testing.T) {
	s := New(NewMemoryPort())

	out, err := s.Read(KeyChatHistory)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Errorf("Read = %q, want nil", out)
	}
}

func TestRead_CorruptedLeavesRawIntact(t *testing.T) {
	port := NewMemoryPort()
	s := New(port)

	raw := `%%% unrecoverable %%%`
	if err := port.Set(KeyChatHistory, []byte(raw)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := s.Read(KeyChatHistory)
	if !errors.Is(err, ErrCorrupted) {
		t.Fatalf("err = %v, want ErrCorrupted", err)
	}

	// The raw bytes must survive for manual inspection.
	got, found, err := port.Get(KeyChatHistory)
	if err != nil || !found {
		t.Fatalf("raw data missing after failed read: found=%v err=%v", found, err)
	}
	if string(got) != raw {
		t.Errorf("raw data mutated: %q", got)
	}
}

func TestWrite_Unavailable(t *testing.T) {
	port := NewMemoryPort()
	port.Disabled = true
	s := New(port)

	err := s.Write("k", map[string]int{"a": 1})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestWrite_QuotaExceeded(t *testing.T) {
	port := NewMemoryPort()
	port.QuotaLimit = 8
	s := New(port)

	err := s.Write("k", "a long enough payload to exceed eight bytes")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("err = %v, want ErrQuotaExceeded", err)
	}
}

func TestChatHistory_NonArrayIsCorrupted(t *testing.T) {
	port := NewMemoryPort()
	s := New(port)

	// Valid JSON, wrong shape: must be reclassified, not coerced.
	if err := port.Set(KeyChatHistory, []byte(`{"id":"c1"}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := s.ChatHistory()
	if !errors.Is(err, ErrCorrupted) {
		t.Errorf("err = %v, want ErrCorrupted", err)
	}
}

func TestChatHistory_RecoversTruncatedBlob(t *testing.T) {
	port := NewMemoryPort()
	s := New(port)

	if err := port.Set(KeyChatHistory, []byte(`[{"id":"c1","title":"T","mode":"team","messages":[]}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	convs, err := s.ChatHistory()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(convs) != 1 || convs[0].ID != "c1" {
		t.Errorf("convs = %+v", convs)
	}
}

func TestChatHistory_Empty(t *testing.T) {
	s := New(NewMemoryPort())

	convs, err := s.ChatHistory()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if convs != nil {
		t.Errorf("convs = %+v, want nil", convs)
	}
}

func TestMigrationStatus_RoundTrip(t *testing.T) {
	s := New(NewMemoryPort())

	if got := s.MigrationStatus(); got.Completed {
		t.Errorf("fresh store reports completed")
	}

	if err := s.SetMigrationStatus(MigrationStatus{Completed: true, Timestamp: "2026-01-02T03:04:05Z"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	got := s.MigrationStatus()
	if !got.Completed || got.Timestamp != "2026-01-02T03:04:05Z" {
		t.Errorf("status = %+v", got)
	}
}

func TestMigrationStatus_UnreadableMeansNotCompleted(t *testing.T) {
	port := NewMemoryPort()
	s := New(port)

	if err := port.Set(KeyMigrationStatus, []byte(`garbage`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if got := s.MigrationStatus(); got.Completed {
		t.Errorf("garbage status reported completed")
	}
}
