package otp

import (
	"context"

	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

// Receipt is the delivery-channel acknowledgment for a sent code.
type Receipt struct {
	Channel    string
	ProviderID string
}

// Sender delivers a code to a phone.
type Sender interface {
	Send(ctx context.Context, phone, code string) (Receipt, error)
}

// LogSender records the send in the log and always succeeds. It is the
// default channel when no SMS provider is configured.
type LogSender struct {
	logger *logging.Logger
}

// NewLogSender creates a stub sender.
func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, phone, _ string) (Receipt, error) {
	s.logger.Info("otp: stub delivery", "phone", logging.MaskPhone(phone))
	return Receipt{Channel: "stub"}, nil
}
