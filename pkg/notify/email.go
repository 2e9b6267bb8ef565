package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/navarrastar/contactsheet/pkg/models"
)

// SendMailFunc is smtp.SendMail with a context bounding the whole exchange.
type SendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// dialTimeout bounds connection setup when ctx carries no deadline.
const dialTimeout = 10 * time.Second

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Email sends a plain-text message per submission.
type Email struct {
	to       string
	smtp     SMTPConfig
	sheetURL string
	loc      *time.Location
	send     SendMailFunc
}

// NewEmail returns an email notifier, or nil when no recipient or mail server
// is configured.
func NewEmail(to string, cfg SMTPConfig, sheetURL string, loc *time.Location) Notifier {
	if strings.TrimSpace(to) == "" || cfg.Host == "" {
		return nil
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Email{to: to, smtp: cfg, sheetURL: sheetURL, loc: loc, send: sendMail}
}

func (e *Email) Notify(ctx context.Context, rec models.PersistedRecord) error {
	var auth smtp.Auth
	if e.smtp.Username != "" {
		auth = smtp.PlainAuth("", e.smtp.Username, e.smtp.Password, e.smtp.Host)
	}

	addr := net.JoinHostPort(e.smtp.Host, strconv.Itoa(e.smtp.Port))
	if err := e.send(ctx, addr, auth, e.smtp.From, []string{e.to}, e.compose(rec)); err != nil {
		return &Error{Channel: "email", Cause: err}
	}
	return nil
}

func (e *Email) compose(rec models.PersistedRecord) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.smtp.From)
	fmt.Fprintf(&b, "To: %s\r\n", e.to)
	fmt.Fprintf(&b, "Subject: %s\r\n", Subject(rec))
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&b, "\r\n")
	b.WriteString(strings.ReplaceAll(Message(rec, e.sheetURL, e.loc), "\n", "\r\n"))
	return []byte(b.String())
}

// sendMail does what smtp.SendMail does, but every step is bounded by ctx:
// the dial, the greeting and each command fail once ctx is done.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("error connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("error reading greeting: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("error starting TLS: %w", err)
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return fmt.Errorf("error authenticating: %w", err)
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
