package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/navarrastar/contactsheet/pkg/lock"
	"github.com/navarrastar/contactsheet/pkg/models"
)

// TimestampLayout is dd/MM/yyyy HH:mm:ss.
const TimestampLayout = "02/01/2006 15:04:05"

// Store appends records to one named table in a Book.
type Store struct {
	book   Book
	name   string
	locker lock.Locker
	loc    *time.Location
}

// Option configures a Store.
type Option func(*Store)

// WithLocker replaces the default in-process locker, e.g. with a distributed
// one when several servers write the same table.
func WithLocker(l lock.Locker) Option {
	return func(s *Store) { s.locker = l }
}

// WithLocation sets the zone timestamps are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// NewStore returns a Store for the table called name.
func NewStore(book Book, name string, opts ...Option) *Store {
	s := &Store{
		book:   book,
		name:   name,
		locker: lock.NewLocal(),
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the table name.
func (s *Store) Name() string {
	return s.name
}

func (s *Store) fail(op string, err error) error {
	return &PersistenceError{Op: op, Table: s.name, Cause: err}
}

// open returns the table, creating it if absent.
func (s *Store) open(ctx context.Context) (Table, error) {
	t, ok, err := s.book.Table(ctx, s.name)
	if err != nil {
		return nil, s.fail("open", err)
	}
	if ok {
		return t, nil
	}

	slog.Info("Table not found, creating", "table", s.name)
	t, err = s.book.CreateTable(ctx, s.name)
	if err != nil {
		return nil, s.fail("create", err)
	}
	return t, nil
}

// EnsureInitialized writes the header row and its presentation when t is
// empty. On a table that already has rows it only restores header formatting
// a previous attempt failed to apply, so calling it on every append never
// duplicates the header or touches data.
func EnsureInitialized(ctx context.Context, t Table) error {
	last, err := t.LastRow(ctx)
	if err != nil {
		return fmt.Errorf("error reading last row: %w", err)
	}
	if last > 0 {
		return restoreHeaderPresentation(ctx, t)
	}

	if err := t.WriteRow(ctx, 1, Header); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	if err := t.Apply(ctx, HeaderPresentation()); err != nil {
		return fmt.Errorf("error formatting header: %w", err)
	}

	slog.Info("Table headers initialized", "table", t.Name())
	return nil
}

func restoreHeaderPresentation(ctx context.Context, t Table) error {
	st, ok := t.(Styler)
	if !ok {
		return nil
	}
	styled, err := st.Styled(ctx, 1)
	if err != nil {
		return fmt.Errorf("error reading header style: %w", err)
	}
	if styled {
		return nil
	}

	if err := t.Apply(ctx, HeaderPresentation()); err != nil {
		return fmt.Errorf("error formatting header: %w", err)
	}
	slog.Info("Header formatting restored", "table", t.Name())
	return nil
}

// Init creates and initializes the table without appending anything.
func (s *Store) Init(ctx context.Context) error {
	unlock, err := s.locker.Lock(ctx, s.name)
	if err != nil {
		return s.fail("lock", err)
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	t, err := s.open(ctx)
	if err != nil {
		return err
	}
	if err := EnsureInitialized(ctx, t); err != nil {
		return s.fail("initialize", err)
	}
	return nil
}

// Append persists rec as the next row and returns its row number. The first
// data row of a fresh table is 2. On error no row number is returned.
//
// ctx only bounds the wait for the lock. Once the lock is held the write runs
// to completion even if ctx is cancelled; each backend bounds its own calls.
func (s *Store) Append(ctx context.Context, rec models.Record) (int, error) {
	unlock, err := s.locker.Lock(ctx, s.name)
	if err != nil {
		return 0, s.fail("lock", err)
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	t, err := s.open(ctx)
	if err != nil {
		return 0, err
	}
	if err := EnsureInitialized(ctx, t); err != nil {
		return 0, s.fail("initialize", err)
	}

	last, err := t.LastRow(ctx)
	if err != nil {
		return 0, s.fail("read", err)
	}
	row := last + 1

	values := s.Values(rec)
	if err := t.WriteRow(ctx, row, values); err != nil {
		return 0, s.fail("write", err)
	}
	if err := t.Apply(ctx, RowPresentation(row, values)); err != nil {
		return 0, s.fail("format", err)
	}

	slog.Debug("Row appended", "table", s.name, "row", row)
	return row, nil
}

// Values lays rec out in header order. Absent optional fields become "".
func (s *Store) Values(rec models.Record) []string {
	return []string{
		FormatTimestamp(rec.Timestamp, s.loc),
		rec.FullName,
		rec.Email,
		rec.Phone,
		rec.StreetAddress,
		rec.City,
		rec.Postcode,
		rec.Comments,
	}
}

// FormatTimestamp renders t in loc using TimestampLayout.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimestampLayout)
}

// Row is a data row read back from the table.
type Row struct {
	Number     int
	Timestamp  string
	Submission models.Submission
}

// Read returns data row n. Asking for the header row is an error.
func (s *Store) Read(ctx context.Context, n int) (*Row, error) {
	if n < 2 {
		return nil, fmt.Errorf("row %d is not a data row", n)
	}

	t, ok, err := s.book.Table(ctx, s.name)
	if err != nil {
		return nil, s.fail("open", err)
	}
	if !ok {
		return nil, ErrRowNotFound
	}

	values, err := t.ReadRow(ctx, n)
	if errors.Is(err, ErrRowNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, s.fail("read", err)
	}

	cell := func(i int) string {
		if i < len(values) {
			return values[i]
		}
		return ""
	}
	return &Row{
		Number:    n,
		Timestamp: cell(0),
		Submission: models.Submission{
			FullName:      cell(1),
			Email:         cell(2),
			Phone:         cell(3),
			StreetAddress: cell(4),
			City:          cell(5),
			Postcode:      cell(6),
			Comments:      cell(7),
		},
	}, nil
}
