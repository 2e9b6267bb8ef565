// Package sheet appends contact records to a spreadsheet-like table: a fixed
// header row followed by one row per submission. Rows are 1-based and the
// header occupies row 1.
package sheet

import (
	"context"
	"errors"
)

var (
	// ErrRowNotFound is returned by ReadRow for rows past the end of the table.
	ErrRowNotFound = errors.New("row not found")
	// ErrRowExists is returned by WriteRow when the row is already occupied.
	ErrRowExists = errors.New("row already exists")
)

// Header is the fixed column layout of every table.
var Header = []string{
	"Submission Date",
	"Full Name",
	"Email Address",
	"Phone Number",
	"Street Address",
	"City",
	"Postcode",
	"Comments",
}

// ColumnWidths are applied alongside the header, in pixels.
var ColumnWidths = []int{150, 150, 200, 130, 200, 120, 100, 250}

// EmailColumn is the 1-based column holding the email address.
const EmailColumn = 3

const (
	HeaderBackground = "#4285f4"
	HeaderFontColor  = "white"
	HeaderFontSize   = 11
	EvenRowColor     = "#f8f9fa"
	OddRowColor      = "#ffffff"
)

// Table is a handle on one named table. Implementations need not be safe for
// concurrent appends: Store serializes those.
type Table interface {
	Name() string
	// LastRow returns the highest occupied row, or 0 for an empty table.
	LastRow(ctx context.Context) (int, error)
	// WriteRow stores values in an empty row. It never replaces an occupied
	// row: that is reported as ErrRowExists.
	WriteRow(ctx context.Context, row int, values []string) error
	// ReadRow returns the values of row, or ErrRowNotFound.
	ReadRow(ctx context.Context, row int) ([]string, error)
	// Apply sets presentation for a row. Backends that cannot render a given
	// attribute ignore it.
	Apply(ctx context.Context, p Presentation) error
}

// Styler is implemented by tables that keep presentation and can tell whether
// a row has any.
type Styler interface {
	Styled(ctx context.Context, row int) (bool, error)
}

// Book holds named tables.
type Book interface {
	// Table returns the named table, or ok=false if it does not exist.
	Table(ctx context.Context, name string) (t Table, ok bool, err error)
	CreateTable(ctx context.Context, name string) (Table, error)
}

// Presentation describes how a row is rendered.
type Presentation struct {
	Row        int
	Bold       bool
	Background string
	FontColor  string
	FontSize   int
	// ColumnWidths applies to the whole table, not just Row.
	ColumnWidths []int
	// FrozenRows applies to the whole table.
	FrozenRows int
	// Links maps a 1-based column to a link target for that cell.
	Links map[int]string
}

// HeaderPresentation is applied when a table is initialized.
func HeaderPresentation() Presentation {
	return Presentation{
		Row:          1,
		Bold:         true,
		Background:   HeaderBackground,
		FontColor:    HeaderFontColor,
		FontSize:     HeaderFontSize,
		ColumnWidths: ColumnWidths,
		FrozenRows:   1,
	}
}

// RowPresentation alternates background by row parity and links the email cell.
func RowPresentation(row int, values []string) Presentation {
	p := Presentation{Row: row, Background: OddRowColor}
	if row%2 == 0 {
		p.Background = EvenRowColor
	}
	if len(values) >= EmailColumn && values[EmailColumn-1] != "" {
		p.Links = map[int]string{EmailColumn: "mailto:" + values[EmailColumn-1]}
	}
	return p
}
