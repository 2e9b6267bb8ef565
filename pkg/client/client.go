// Package client submits contact records to a running contactsheet server.
//
// Every attempt is made exactly once. A request that exceeds the configured
// wait is reported as ambiguous: the server may well have saved the row, so
// the caller is told to check rather than resubmit, and nothing is retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/navarrastar/contactsheet/pkg/models"
)

// Outcome classifies a single submission attempt.
type Outcome int

const (
	// Confirmed means the server acknowledged the row.
	Confirmed Outcome = iota + 1
	// Rejected means the server answered with an error.
	Rejected
	// Ambiguous means the wait expired before an answer arrived. Likely saved.
	Ambiguous
	// Failed means the request never reached the server or the reply was unreadable.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case Rejected:
		return "rejected"
	case Ambiguous:
		return "ambiguous"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// TransportError is a client-observed network failure. Timeout is set when
// the bounded wait expired.
type TransportError struct {
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("submission timed out: %v", e.Err)
	}
	return fmt.Sprintf("error contacting server: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Result is the interpreted server answer.
type Result struct {
	Outcome   Outcome
	Row       int
	Message   string
	Timestamp string
}

// Client defines the interface for submitting to the ingestion endpoint
type Client interface {
	Submit(ctx context.Context, data models.Submission) (*Result, error)
	Ping(ctx context.Context) error
}

type clientImpl struct {
	submitURL string
	timeout   time.Duration
	http      *http.Client
}

// Option configures a Client.
type Option func(*clientImpl)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(ci *clientImpl) { ci.http = c }
}

// NewClient creates a client posting to submitURL and waiting at most timeout
// for each answer.
func NewClient(submitURL string, timeout time.Duration, opts ...Option) Client {
	c := &clientImpl{
		submitURL: submitURL,
		timeout:   timeout,
		http:      &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts data once. On error the returned Result still carries the
// Ambiguous or Failed outcome; a *TransportError means the server could not be
// reached or did not answer in time.
func (c *clientImpl) Submit(ctx context.Context, data models.Submission) (*Result, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return &Result{Outcome: Failed}, fmt.Errorf("error encoding submission: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.submitURL, bytes.NewReader(body))
	if err != nil {
		return &Result{Outcome: Failed}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportFailure(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportFailure(ctx, err)
	}

	var parsed models.SubmissionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &Result{Outcome: Failed}, fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, truncate(raw, 200))
	}

	res := &Result{Message: parsed.Message, Row: parsed.RowNumber, Timestamp: parsed.Timestamp}
	if parsed.Status == models.StatusSuccess && resp.StatusCode < 300 {
		res.Outcome = Confirmed
	} else {
		res.Outcome = Rejected
		res.Row = 0
	}
	slog.Debug("Submission answered", "outcome", res.Outcome, "status", resp.StatusCode, "row", res.Row)
	return res, nil
}

func (c *clientImpl) transportFailure(ctx context.Context, err error) (*Result, error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return &Result{Outcome: Ambiguous}, &TransportError{Timeout: true, Err: err}
	}
	return &Result{Outcome: Failed}, &TransportError{Err: err}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// Ping checks that the status endpoint answers. It shares the submit timeout.
func (c *clientImpl) Ping(ctx context.Context) error {
	u, err := url.Parse(c.submitURL)
	if err != nil {
		return fmt.Errorf("error parsing submit URL: %w", err)
	}
	u.Path = "/health"
	u.RawQuery = ""

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		_, terr := c.transportFailure(ctx, err)
		return terr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status check returned %d", resp.StatusCode)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
