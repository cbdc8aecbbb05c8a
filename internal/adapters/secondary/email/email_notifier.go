package email

import (
	"context"
	"log/slog"

	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
)

// LogNotifier is a secondary adapter that logs outgoing mail instead of
// delivering it. It implements the ports.Notifier interface.
type LogNotifier struct {
	users  ports.UserDirectory
	logger *slog.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a notifier that resolves recipients through users.
func NewLogNotifier(users ports.UserDirectory, logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{
		users:  users,
		logger: logger.With("component", "email_notifier"),
	}
}

// Notify logs the message addressed to the recipient. Failures are logged;
// the caller runs it in the background and never waits on the result.
func (n *LogNotifier) Notify(ctx context.Context, params ports.NotificationParams) {
	contact, err := n.users.GetContact(ctx, params.RecipientUserID)
	if err != nil {
		n.logger.Error("failed to get user for notification",
			"user_id", params.RecipientUserID,
			"error", err,
		)
		return
	}

	n.logger.Info("email sent",
		"to_name", contact.FullName,
		"to_email", contact.Email,
		"subject", params.Subject,
		"ticket_id", params.TicketID,
	)
}
