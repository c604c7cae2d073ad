package model

import "context"

// Severity levels for reports and notifications.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a user-visible, dismissible banner: lost worker, batch
// cancelled and similar conditions. Routine retries never produce one.
type Notification struct {
	Severity Severity
	Title    string
	Detail   string
}

// Reporter is the error-reporting sink consumed by the protocol loops.
// Implementations must not block and must not panic back into the caller.
type Reporter interface {
	Report(ctx context.Context, severity Severity, msg string, err error)
}

// Notifier registers user-visible notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}
