package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/gigradar/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes deliveries to the given logger instead of a chat.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each delivery via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Deliver logs the message. It never fails.
func (n *LogNotifier) Deliver(_ context.Context, chatID, text, link string) error {
	n.logger.Info("notification", "chat_id", chatID, "link", link, "text", text)
	return nil
}
