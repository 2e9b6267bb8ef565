// Package notify tells a human about a newly persisted submission. Delivery is
// best-effort: errors are logged and swallowed by Hook and can never change
// the outcome of the submission that triggered them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/navarrastar/contactsheet/pkg/models"
	"github.com/navarrastar/contactsheet/pkg/utils"
)

// Notifier delivers a message about a persisted record.
type Notifier interface {
	Notify(ctx context.Context, rec models.PersistedRecord) error
}

// Error is a failed delivery to one destination.
type Error struct {
	Channel string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s notification failed: %v", e.Channel, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Multi fans out to several notifiers. Every destination is attempted even if
// an earlier one fails.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, rec models.PersistedRecord) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Combine returns a Notifier over the non-nil arguments, or nil when none are
// configured.
func Combine(ns ...Notifier) Notifier {
	var m Multi
	for _, n := range ns {
		if n != nil {
			m = append(m, n)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	default:
		return m
	}
}

// DeliveryTimeout bounds one Hook call across all destinations.
const DeliveryTimeout = 10 * time.Second

// Hook adapts n to a post-commit callback. A nil n yields a no-op. The
// callback has no return value: failures end here. Delivery gets at most
// DeliveryTimeout, less if ctx ends sooner.
func Hook(n Notifier, observe func(err error)) func(context.Context, models.PersistedRecord) {
	if n == nil {
		return func(context.Context, models.PersistedRecord) {
			slog.Debug("Notification skipped - no destination configured")
		}
	}

	return func(ctx context.Context, rec models.PersistedRecord) {
		ctx, cancel := context.WithTimeout(ctx, DeliveryTimeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("notifier panicked: %v", r)
				slog.Error("Notification failed", "row", rec.Row, "error", err)
				if observe != nil {
					observe(err)
				}
			}
		}()

		err := n.Notify(ctx, rec)
		if err != nil {
			slog.Warn("Notification failed", "row", rec.Row, "email", utils.Fingerprint(rec.Email), "error", err)
		} else {
			slog.Info("Notification sent", "row", rec.Row)
		}
		if observe != nil {
			observe(err)
		}
	}
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// Message renders the human-readable notification text.
func Message(rec models.PersistedRecord, sheetURL string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New form submission received:\n\n")
	fmt.Fprintf(&b, "Submission #%d\n", rec.Row)
	fmt.Fprintf(&b, "Date: %s\n\n", rec.Timestamp.In(loc).Format("02/01/2006, 15:04:05"))

	fmt.Fprintf(&b, "Contact Information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", rec.FullName)
	fmt.Fprintf(&b, "- Email: %s\n", rec.Email)
	fmt.Fprintf(&b, "- Phone: %s\n\n", orDefault(rec.Phone, "Not provided"))

	fmt.Fprintf(&b, "Address:\n")
	fmt.Fprintf(&b, "- Street: %s\n", rec.StreetAddress)
	fmt.Fprintf(&b, "- City: %s\n", rec.City)
	fmt.Fprintf(&b, "- Postcode: %s\n\n", rec.Postcode)

	fmt.Fprintf(&b, "Comments: %s\n", orDefault(rec.Comments, "None"))

	if sheetURL != "" {
		fmt.Fprintf(&b, "\nView spreadsheet: %s\n", sheetURL)
	}
	return b.String()
}

// Subject is the notification title.
func Subject(rec models.PersistedRecord) string {
	return fmt.Sprintf("New Form Submission #%d", rec.Row)
}
