package notify

import (
	"context"
	"fmt"
)

// MultiTransport dispatches a notification to the SMS transport for
// SMS1/SMS2 and the email transport for Email1/Email2, so Queue only
// ever holds the one Transport its constructor requires while the two
// underlying transports stay independently testable.
type MultiTransport struct {
	SMS   *SMSTransport
	Email *EmailTransport
}

// Send routes to the transport owning ch.
func (m *MultiTransport) Send(ctx context.Context, ch Channel, n *Notification) error {
	switch ch {
	case SMS1, SMS2:
		if m.SMS == nil {
			return fmt.Errorf("notify: no SMS transport configured")
		}
		return m.SMS.Send(ctx, ch, n)
	case Email1, Email2:
		if m.Email == nil {
			return fmt.Errorf("notify: no email transport configured")
		}
		return m.Email.Send(ctx, ch, n)
	default:
		return fmt.Errorf("notify: unknown channel %d", ch)
	}
}
