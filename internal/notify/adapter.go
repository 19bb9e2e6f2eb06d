// Package notify delivers operational events (backup outcomes, audit
// findings) to chat platforms.
package notify

import "context"

// Severity levels for events.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
	SeveritySuccess = "success"
)

// Event is one operational notification.
type Event struct {
	Title    string
	Body     string
	Severity string // one of the Severity constants
}

// Adapter is the interface platform-specific senders implement.
type Adapter interface {
	// Send delivers the event. Failures are the caller's to log; senders
	// must not panic.
	Send(ctx context.Context, ev Event) error
}

// SeverityColor maps a severity to a sidebar color hint shared by the
// platform adapters.
func SeverityColor(severity string) string {
	switch severity {
	case SeveritySuccess:
		return "#36a64f"
	case SeverityWarning:
		return "#daa038"
	case SeverityError:
		return "#cc0000"
	default:
		return "#439fe0"
	}
}
