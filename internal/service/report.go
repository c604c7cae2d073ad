package service

import (
	"context"
	"log/slog"

	"github.com/forge3d/assetsync/internal/model"
)

// LogReporter is the default error sink: structured log records, nothing
// user-visible.
type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, severity model.Severity, msg string, err error) {
	switch severity {
	case model.SeverityError:
		slog.ErrorContext(ctx, msg, "error", err)
	case model.SeverityWarning:
		slog.WarnContext(ctx, msg, "error", err)
	default:
		slog.InfoContext(ctx, msg, "error", err)
	}
}

// LogNotifier is the default notification sink for headless runs, where
// there is no panel to show a banner in.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n model.Notification) {
	slog.WarnContext(ctx, "notification",
		"severity", n.Severity,
		"title", n.Title,
		"detail", n.Detail,
	)
}
