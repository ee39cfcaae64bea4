package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ViniMktd/FlowBot-sub001/internal/domain"
)

// Sender delivers one message on one channel. Implementations exist per
// channel and are selected by the registry below.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

type SenderFunc func(ctx context.Context, recipient, subject, body string) error

func (f SenderFunc) Send(ctx context.Context, recipient, subject, body string) error {
	return f(ctx, recipient, subject, body)
}

// Registry maps channels to their senders.
type Registry map[domain.NotificationChannel]Sender

func (r Registry) Lookup(ch domain.NotificationChannel) (Sender, error) {
	s, ok := r[ch]
	if !ok {
		return nil, fmt.Errorf("no sender registered for channel %q", ch)
	}
	return s, nil
}

// LogSender stands in for channels with no transport configured yet; it
// records the delivery as a structured log line and succeeds.
func LogSender(logger *slog.Logger, channel domain.NotificationChannel) Sender {
	return SenderFunc(func(ctx context.Context, recipient, subject, body string) error {
		logger.Info("notification delivered",
			"channel", channel, "recipient", recipient, "subject", subject)
		return nil
	})
}
