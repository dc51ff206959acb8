// Package notify builds the transient notices shown after each call to the
// user service. Notices are plain values; the session queues them and the
// view renders them top-right until they dismiss themselves.
package notify

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Toast is one notice. Several may be visible at once and identical messages
// are not merged.
type Toast struct {
	ID           string        `json:"id"`
	Message      string        `json:"message"`
	Severity     Severity      `json:"severity"`
	DismissAfter time.Duration `json:"dismiss_after"`
}

// DismissMillis is DismissAfter in milliseconds, as the page script expects.
func (t Toast) DismissMillis() int64 {
	return t.DismissAfter.Milliseconds()
}

type Notifier struct {
	duration time.Duration
}

func New(duration time.Duration) *Notifier {
	return &Notifier{duration: duration}
}

func (n *Notifier) Success(message string) Toast {
	return n.toast(message, SeveritySuccess)
}

func (n *Notifier) Error(message string) Toast {
	return n.toast(message, SeverityError)
}

func (n *Notifier) toast(message string, severity Severity) Toast {
	return Toast{
		ID:           uuid.New().String(),
		Message:      message,
		Severity:     severity,
		DismissAfter: n.duration,
	}
}
