// Package notify delivers advisory desktop notifications for review events.
//
// Notifications are strictly advisory: delivery failures are logged and
// dropped, never propagated back into event handling.
package notify

import "time"

// Urgency maps to the desktop notification urgency hint.
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// Notification is one advisory message.
type Notification struct {
	// Title is the notification summary line.
	Title string

	// Body is the notification text.
	Body string

	// Urgency hints how prominently to display it.
	Urgency Urgency

	// Timeout is how long the notification stays visible (0 = default).
	Timeout time.Duration
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Send delivers one notification. Best effort.
	Send(n Notification) error

	// Close releases the underlying connection.
	Close() error
}

// Disabled is a no-op notifier.
type Disabled struct{}

// Send discards the notification.
func (Disabled) Send(Notification) error { return nil }

// Close is a no-op.
func (Disabled) Close() error { return nil }
