// Package sqlite provides a SQLite-backed implementation of sheet.Book.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/navarrastar/contactsheet/pkg/sheet"
)

var (
	_ sheet.Book   = (*Book)(nil)
	_ sheet.Styler = (*Table)(nil)
)

// Book stores every sheet in one SQLite database.
type Book struct {
	db *sql.DB
}

// New opens the database at dbPath, creating parent directories and running
// migrations.
func New(dbPath string) (*Book, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps writers from tripping over SQLITE_BUSY and
	// makes the PRAGMAs below stick.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	n, err := runMigrations(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if n > 0 {
		slog.Info("Applied migrations", "count", n, "database", dbPath)
	}

	return &Book{db: db}, nil
}

// Close closes the database connection.
func (b *Book) Close() error {
	return b.db.Close()
}

func (b *Book) Table(ctx context.Context, name string) (sheet.Table, bool, error) {
	var found string
	err := b.db.QueryRowContext(ctx, "SELECT name FROM sheets WHERE name = ?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up sheet: %w", err)
	}
	return &Table{db: b.db, name: found}, true, nil
}

func (b *Book) CreateTable(ctx context.Context, name string) (sheet.Table, error) {
	_, err := b.db.ExecContext(ctx,
		"INSERT INTO sheets (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		name, time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	return &Table{db: b.db, name: name}, nil
}

// Table is one sheet inside a Book.
type Table struct {
	db   *sql.DB
	name string
}

func (t *Table) Name() string { return t.name }

func (t *Table) LastRow(ctx context.Context) (int, error) {
	var last int
	err := t.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(row_number), 0) FROM sheet_rows WHERE sheet = ?",
		t.name,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to read last row: %w", err)
	}
	return last, nil
}

func (t *Table) WriteRow(ctx context.Context, row int, values []string) error {
	if row < 1 {
		return fmt.Errorf("invalid row %d", row)
	}
	if values == nil {
		values = []string{}
	}

	cells, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}

	res, err := t.db.ExecContext(ctx,
		`INSERT INTO sheet_rows (sheet, row_number, cells) VALUES (?, ?, ?)
		 ON CONFLICT(sheet, row_number) DO NOTHING`,
		t.name, row, string(cells),
	)
	if err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to write row %d: %w", row, sheet.ErrRowExists)
	}
	return nil
}

func (t *Table) ReadRow(ctx context.Context, row int) ([]string, error) {
	var cells string
	err := t.db.QueryRowContext(ctx,
		"SELECT cells FROM sheet_rows WHERE sheet = ? AND row_number = ?",
		t.name, row,
	).Scan(&cells)
	if err == sql.ErrNoRows {
		return nil, sheet.ErrRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read row %d: %w", row, err)
	}

	var values []string
	if err := json.Unmarshal([]byte(cells), &values); err != nil {
		return nil, fmt.Errorf("failed to decode row %d: %w", row, err)
	}
	return values, nil
}

func (t *Table) Apply(ctx context.Context, p sheet.Presentation) error {
	links := p.Links
	if links == nil {
		links = map[int]string{}
	}
	encodedLinks, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("failed to encode links: %w", err)
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO row_styles (sheet, row_number, bold, background, font_color, font_size, links)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(sheet, row_number) DO UPDATE SET
		   bold = excluded.bold,
		   background = excluded.background,
		   font_color = excluded.font_color,
		   font_size = excluded.font_size,
		   links = excluded.links`,
		t.name, p.Row, p.Bold, p.Background, p.FontColor, p.FontSize, string(encodedLinks),
	)
	if err != nil {
		return fmt.Errorf("failed to style row %d: %w", p.Row, err)
	}

	if len(p.ColumnWidths) > 0 {
		widths, err := json.Marshal(p.ColumnWidths)
		if err != nil {
			return fmt.Errorf("failed to encode column widths: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE sheets SET column_widths = ? WHERE name = ?", string(widths), t.name,
		); err != nil {
			return fmt.Errorf("failed to set column widths: %w", err)
		}
	}

	if p.FrozenRows > 0 {
		if _, err := tx.ExecContext(ctx,
			"UPDATE sheets SET frozen_rows = ? WHERE name = ?", p.FrozenRows, t.name,
		); err != nil {
			return fmt.Errorf("failed to freeze rows: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *Table) Styled(ctx context.Context, row int) (bool, error) {
	var one int
	err := t.db.QueryRowContext(ctx,
		"SELECT 1 FROM row_styles WHERE sheet = ? AND row_number = ?",
		t.name, row,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read style: %w", err)
	}
	return true, nil
}

// Presentation returns the stored style of row, merged with the sheet-wide
// layout.
func (t *Table) Presentation(ctx context.Context, row int) (sheet.Presentation, error) {
	p := sheet.Presentation{Row: row}
	var links, widths string

	err := t.db.QueryRowContext(ctx,
		`SELECT bold, background, font_color, font_size, links FROM row_styles
		 WHERE sheet = ? AND row_number = ?`,
		t.name, row,
	).Scan(&p.Bold, &p.Background, &p.FontColor, &p.FontSize, &links)
	if err == sql.ErrNoRows {
		return p, sheet.ErrRowNotFound
	}
	if err != nil {
		return p, fmt.Errorf("failed to read style: %w", err)
	}
	if err := json.Unmarshal([]byte(links), &p.Links); err != nil {
		return p, fmt.Errorf("failed to decode links: %w", err)
	}
	if len(p.Links) == 0 {
		p.Links = nil
	}

	err = t.db.QueryRowContext(ctx,
		"SELECT frozen_rows, column_widths FROM sheets WHERE name = ?", t.name,
	).Scan(&p.FrozenRows, &widths)
	if err != nil {
		return p, fmt.Errorf("failed to read layout: %w", err)
	}
	if err := json.Unmarshal([]byte(widths), &p.ColumnWidths); err != nil {
		return p, fmt.Errorf("failed to decode column widths: %w", err)
	}
	if len(p.ColumnWidths) == 0 {
		p.ColumnWidths = nil
	}
	return p, nil
}
