package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/navarrastar/contactsheet/pkg/clients/twilio"
	"github.com/navarrastar/contactsheet/pkg/models"
)

// SMS texts a short summary of each submission.
type SMS struct {
	client twilio.Client
	to     string
}

// NewSMS returns an SMS notifier, or nil when to is empty or client is nil.
func NewSMS(client twilio.Client, to string) Notifier {
	if client == nil || strings.TrimSpace(to) == "" {
		return nil
	}
	return &SMS{client: client, to: to}
}

// Notify sends the text. The Twilio client takes no context, so the send runs
// in its own goroutine and Notify returns once ctx is done even if Twilio
// has not answered.
func (s *SMS) Notify(ctx context.Context, rec models.PersistedRecord) error {
	body := fmt.Sprintf("%s: %s <%s>, %s %s", Subject(rec), rec.FullName, rec.Email, rec.City, rec.Postcode)

	done := make(chan error, 1)
	go func() { done <- s.client.SendSMS(s.to, body) }()

	select {
	case err := <-done:
		if err != nil {
			return &Error{Channel: "sms", Cause: err}
		}
		return nil
	case <-ctx.Done():
		return &Error{Channel: "sms", Cause: ctx.Err()}
	}
}
