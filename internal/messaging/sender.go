// Package messaging defines the outbound message contract shared by the
// webhook reply path and the notification dispatcher.
package messaging

import (
	"context"

	"github.com/turnoslabs/turnosbot/pkg/logging"
)

// Sender delivers one text message to a phone number.
type Sender interface {
	Send(ctx context.Context, recipient, text string) error
}

// NoopSender logs instead of sending. Used in development and when the
// WhatsApp credentials are absent.
type NoopSender struct {
	Logger *logging.Logger
}

func (s NoopSender) Send(_ context.Context, recipient, text string) error {
	logger := s.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("noop send", "recipient", recipient, "text", text)
	return nil
}
