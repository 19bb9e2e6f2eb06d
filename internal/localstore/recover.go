package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// fragmentRe matches a conversation-shaped object: a single-level JSON
// object containing a "title" key followed by a "messages" array of flat
// objects. This is a best-effort heuristic, not a parser: valid data that
// does not match (deeply nested metadata, title after messages) is lost to
// extraction, which is acceptable. Extraction never fabricates data: every
// returned record decoded from bytes actually present in the input.
var fragmentRe = regexp.MustCompile(`\{[^{}]*"title"\s*:[^{}]*"messages"\s*:\s*\[(?:[^\[\]{}]|\{[^{}]*\})*\][^{}]*\}`)

// RecoverHistory applies the layered recovery protocol to a chat-history
// blob that failed to decode. Strategies run in fixed order and the first
// success wins:
//
//  1. direct re-decode (covers transient glitches upstream)
//  2. bracket-balance repair
//  3. conversation fragment extraction
//
// No strategy mutates the input. The caller keeps the raw bytes on failure.
func RecoverHistory(raw []byte) ([]LocalConversation, error) {
	// Strategy 1: the blob may decode fine on a second look.
	var convs []LocalConversation
	if json.Unmarshal(raw, &convs) == nil {
		return convs, nil
	}

	// Strategy 2: repair a positive open/close bracket imbalance.
	if repaired, ok := balanceBrackets(raw); ok {
		if json.Unmarshal(repaired, &convs) == nil {
			return convs, nil
		}
	}

	// Strategy 3: pull out whatever conversation-shaped fragments survive.
	convs, ok := extractFragments(raw)
	if !ok {
		return nil, errors.New("all recovery strategies failed")
	}
	return convs, nil
}

// RecoverJSON runs the same protocol but returns repaired JSON bytes, for
// callers reading keys with no conversation schema.
func RecoverJSON(raw []byte) (json.RawMessage, error) {
	if json.Valid(raw) {
		return json.RawMessage(raw), nil
	}

	if repaired, ok := balanceBrackets(raw); ok && json.Valid(repaired) {
		return json.RawMessage(repaired), nil
	}

	convs, ok := extractFragments(raw)
	if !ok {
		return nil, errors.New("all recovery strategies failed")
	}
	out, err := json.Marshal(convs)
	if err != nil {
		return nil, fmt.Errorf("re-encode fragments: %w", err)
	}
	return out, nil
}

// balanceBrackets appends the minimum closing tokens needed to balance
// unmatched { and [ openers. It tracks string literals and escapes so
// brackets inside values don't count. Returns ok=false when the imbalance
// is not strictly positive: nothing to append, or a stray closer / an
// unterminated string, which appending cannot fix.
func balanceBrackets(raw []byte) ([]byte, bool) {
	var stack []byte
	inString := false
	escaped := false

	for _, c := range raw {
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if len(stack) == 0 || stack[len(stack)-1] != '{' {
				return nil, false
			}
			stack = stack[:len(stack)-1]
		case ']':
			if len(stack) == 0 || stack[len(stack)-1] != '[' {
				return nil, false
			}
			stack = stack[:len(stack)-1]
		}
	}

	if inString || len(stack) == 0 {
		return nil, false
	}

	repaired := make([]byte, len(raw), len(raw)+len(stack))
	copy(repaired, raw)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			repaired = append(repaired, '}')
		} else {
			repaired = append(repaired, ']')
		}
	}
	return repaired, true
}

// extractFragments scans raw text for conversation-shaped objects and
// decodes each independently. Matches that fail to decode or lack the
// title/messages structure are dropped. ok is false only when the scan
// finds no candidates at all; a candidate set that filters down to empty
// still counts as a (possibly empty) recovery.
func extractFragments(raw []byte) ([]LocalConversation, bool) {
	matches := fragmentRe.FindAll(raw, -1)
	if len(matches) == 0 {
		return nil, false
	}

	convs := make([]LocalConversation, 0, len(matches))
	for _, m := range matches {
		if !qualifiesAsConversation(m) {
			continue
		}
		var c LocalConversation
		if err := json.Unmarshal(m, &c); err != nil {
			continue
		}
		convs = append(convs, c)
	}
	return convs, true
}

// qualifiesAsConversation checks that a decoded fragment structurally looks
// like a conversation: a title string and a messages array.
func qualifiesAsConversation(fragment []byte) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(fragment, &obj); err != nil {
		return false
	}
	titleRaw, hasTitle := obj["title"]
	messagesRaw, hasMessages := obj["messages"]
	if !hasTitle || !hasMessages {
		return false
	}
	var title string
	if err := json.Unmarshal(titleRaw, &title); err != nil {
		return false
	}
	var messages []json.RawMessage
	return json.Unmarshal(messagesRaw, &messages) == nil
}
