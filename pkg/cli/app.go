package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/navarrastar/contactsheet/pkg/clients/airtable"
	"github.com/navarrastar/contactsheet/pkg/clients/twilio"
	"github.com/navarrastar/contactsheet/pkg/config"
	"github.com/navarrastar/contactsheet/pkg/lock"
	"github.com/navarrastar/contactsheet/pkg/metrics"
	"github.com/navarrastar/contactsheet/pkg/models"
	"github.com/navarrastar/contactsheet/pkg/notify"
	"github.com/navarrastar/contactsheet/pkg/services"
	"github.com/navarrastar/contactsheet/pkg/sheet"
	"github.com/navarrastar/contactsheet/pkg/sheet/sqlite"
)

// app holds the long-lived dependencies shared by the subcommands.
type app struct {
	cfg     *config.Config
	store   *sheet.Store
	closers []func()
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	book, err := a.openBook()
	if err != nil {
		return nil, err
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.ValkeyAddr != "" {
		v, err := lock.NewValkey(cfg.ValkeyAddr, cfg.LockTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("error connecting to valkey: %w", err)
		}
		a.closers = append(a.closers, v.Close)
		locker = v
		slog.Info("Using distributed row lock", "addr", cfg.ValkeyAddr)
	}

	a.store = sheet.NewStore(book, cfg.SheetName,
		sheet.WithLocker(locker),
		sheet.WithLocation(cfg.Location),
	)
	return a, nil
}

func (a *app) openBook() (sheet.Book, error) {
	switch a.cfg.TableBackend {
	case config.BackendMemory:
		slog.Warn("Using in-memory table, rows are lost on exit")
		return sheet.NewMemoryBook(), nil
	case config.BackendAirtable:
		return airtable.NewClient(a.cfg.AirtableAPIKey, a.cfg.AirtableBaseID,
			airtable.WithBaseURL(a.cfg.AirtableURL)), nil
	case config.BackendSQLite:
		book, err := sqlite.New(a.cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := book.Close(); err != nil {
				slog.Warn("Error closing database", "error", err)
			}
		})
		return book, nil
	default:
		return nil, fmt.Errorf("unknown table backend %q", a.cfg.TableBackend)
	}
}

// notifier returns the configured destinations, or nil when there are none.
func (a *app) notifier() notify.Notifier {
	email := notify.NewEmail(a.cfg.NotifyEmail, notify.SMTPConfig{
		Host:     a.cfg.SMTPHost,
		Port:     a.cfg.SMTPPort,
		Username: a.cfg.SMTPUsername,
		Password: a.cfg.SMTPPassword,
		From:     a.cfg.SMTPFrom,
	}, a.cfg.SheetURL, a.cfg.Location)

	var sms notify.Notifier
	if a.cfg.SMSConfigured() {
		sms = notify.NewSMS(twilio.NewClient(a.cfg.TwilioAccountSID, a.cfg.TwilioAuthToken, a.cfg.TwilioFrom), a.cfg.NotifySMSTo)
	}

	return notify.Combine(email, sms)
}

// service builds the ingestion pipeline with its post-commit notification.
func (a *app) service(m *metrics.Metrics) services.SubmissionService {
	n := a.notifier()
	hook := notify.Hook(n, m.Notification)
	if n == nil {
		skip := hook
		hook = func(ctx context.Context, rec models.PersistedRecord) {
			m.NotificationSkipped()
			skip(ctx, rec)
		}
	}

	return services.NewSubmissionService(a.store,
		services.WithHook(services.PostCommitHook(hook)),
		services.WithMetrics(m),
	)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
