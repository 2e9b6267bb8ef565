package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/navarrastar/contactsheet/pkg/metrics"
	"github.com/navarrastar/contactsheet/pkg/models"
	"github.com/navarrastar/contactsheet/pkg/utils"
	"github.com/navarrastar/contactsheet/pkg/validation"
)

// SubmissionService defines the interface for ingesting form submissions
type SubmissionService interface {
	Ingest(ctx context.Context, data models.Submission) (*models.Receipt, error)
}

// Appender persists a record and returns the row it landed on.
// *sheet.Store satisfies it.
type Appender interface {
	Append(ctx context.Context, rec models.Record) (int, error)
}

// PostCommitHook runs after a record is durably appended. It has no return
// value, so nothing it does can change the submission's outcome.
type PostCommitHook func(ctx context.Context, rec models.PersistedRecord)

// Option configures the submission service.
type Option func(*submissionServiceImpl)

// WithHook attaches a post-commit hook, typically notify.Hook.
func WithHook(hook PostCommitHook) Option {
	return func(s *submissionServiceImpl) { s.hook = hook }
}

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *submissionServiceImpl) { s.now = now }
}

// WithMetrics records outcomes and append latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *submissionServiceImpl) { s.metrics = m }
}

type submissionServiceImpl struct {
	store   Appender
	hook    PostCommitHook
	now     func() time.Time
	metrics *metrics.Metrics
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(store Appender, opts ...Option) SubmissionService {
	s := &submissionServiceImpl{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest validates data, appends it exactly once and fires the post-commit
// hook. Errors are *validation.Error or *sheet.PersistenceError.
func (s *submissionServiceImpl) Ingest(ctx context.Context, data models.Submission) (*models.Receipt, error) {
	fingerprint := utils.Fingerprint(data.Email)

	if err := validation.CheckSubmission(data); err != nil {
		s.metrics.Submission(metrics.OutcomeRejected)
		slog.Info("Submission rejected", "email", fingerprint, "reason", err)
		return nil, err
	}

	rec := models.Record{
		Submission: validation.Normalize(data),
		Timestamp:  s.now(),
	}

	start := time.Now()
	row, err := s.store.Append(ctx, rec)
	s.metrics.ObserveAppend(time.Since(start))
	if err != nil {
		s.metrics.Submission(metrics.OutcomeFailed)
		slog.Error("Error saving submission", "email", fingerprint, "error", err)
		return nil, err
	}

	s.metrics.Submission(metrics.OutcomeSaved)
	slog.Info("Submission saved", "row", row, "email", fingerprint)

	// The record is committed: a caller hanging up now must not cost the
	// notification. The hook bounds its own delivery time.
	if s.hook != nil {
		s.hook(context.WithoutCancel(ctx), models.PersistedRecord{Record: rec, Row: row})
	}

	return &models.Receipt{Row: row, Timestamp: rec.Timestamp}, nil
}
