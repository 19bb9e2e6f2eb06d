package localstore

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRecoverHistory_ValidInput(t *testing.T) {
	raw := []byte(`[{"id":"c1","title":"Standup habits","mode":"team","messages":[{"role":"user","content":"hi"}]}]`)

	convs, err := RecoverHistory(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("len(convs) = %d, want 1", len(convs))
	}
	if convs[0].ID != "c1" || convs[0].Title != "Standup habits" {
		t.Errorf("conv = %+v", convs[0])
	}
	if len(convs[0].Messages) != 1 || convs[0].Messages[0].Content != "hi" {
		t.Errorf("messages = %+v", convs[0].Messages)
	}
}

func TestRecoverHistory_MissingClosingBracket(t *testing.T) {
	// Intended structure with the final ] truncated.
	raw := []byte(`[{"id":"c1","title":"One on one","mode":"personal","messages":[]}`)

	convs, err := RecoverHistory(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(convs) != 1 || convs[0].ID != "c1" {
		t.Fatalf("convs = %+v", convs)
	}
}

func TestRecoverHistory_TruncatedMidObject(t *testing.T) {
	raw := []byte(`[{"id":"c1","title":"Retro","mode":"team","messages":[{"role":"user","content":"note"}`)

	convs, err := RecoverHistory(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("len(convs) = %d, want 1", len(convs))
	}
	if len(convs[0].Messages) != 1 {
		t.Errorf("messages = %+v", convs[0].Messages)
	}
}

func TestRecoverHistory_Deterministic(t *testing.T) {
	raw := []byte(`[{"id":"c1","title":"Retro","mode":"team","messages":[]}`)

	first, err := RecoverHistory(raw)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := RecoverHistory(raw)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("recovery not deterministic: %+v vs %+v", first, second)
	}
}

func TestRecoverHistory_FragmentExtraction(t *testing.T) {
	// Two well-formed conversation objects embedded in unparseable noise.
	raw := []byte(`x%x!!{"id":"a","title":"Growth plan","mode":"personal","messages":[{"role":"user","content":"q"},{"role":"ai","content":"a"}]}<<garbage>>{"id":"b","title":"Team sync","mode":"team","messages":[]}###`)

	convs, err := RecoverHistory(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("len(convs) = %d, want 2", len(convs))
	}
	if convs[0].Title != "Growth plan" || convs[1].Title != "Team sync" {
		t.Errorf("titles = %q, %q", convs[0].Title, convs[1].Title)
	}
	if len(convs[0].Messages) != 2 {
		t.Errorf("first conv messages = %+v", convs[0].Messages)
	}
}

func TestRecoverHistory_FragmentsRequireTitleAndMessages(t *testing.T) {
	// Object with a title but no messages key must not qualify; the one
	// complete conversation should still come through.
	raw := []byte(`!{"id":"x","title":"No messages here"}!{"id":"y","title":"Kept","mode":"team","messages":[]}`)

	convs, err := RecoverHistory(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(convs) != 1 || convs[0].ID != "y" {
		t.Fatalf("convs = %+v", convs)
	}
}

func TestRecoverHistory_Unrecoverable(t *testing.T) {
	raw := []byte(`%%%% nothing conversation shaped here ]]]`)

	if _, err := RecoverHistory(raw); err == nil {
		t.Fatal("expected error for unrecoverable input")
	}
}

func TestBalanceBrackets(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"one missing bracket", `[{"a":1}`, `[{"a":1}]`, true},
		{"two missing", `[{"a":[1,2`, `[{"a":[1,2]}]`, true},
		{"balanced input", `[{"a":1}]`, "", false},
		{"stray closer", `[{"a":1}]]`, "", false},
		{"brackets inside strings ignored", `[{"a":"}]"`, `[{"a":"}]"}]`, true},
		{"escaped quote in string", `[{"a":"say \"hi\" {"`, `[{"a":"say \"hi\" {"}]`, true},
		{"unterminated string", `[{"a":"oops`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := balanceBrackets([]byte(tt.in))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && string(got) != tt.want {
				t.Errorf("repaired = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecoverJSON_RepairedOutputIsValid(t *testing.T) {
	raw := []byte(`{"completed":true,"timestamp":"2026-01-02T03:04:05Z"`)

	out, err := RecoverJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !json.Valid(out) {
		t.Errorf("repaired output not valid JSON: %s", out)
	}
}
