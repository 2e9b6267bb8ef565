package sheet

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBook is an in-process Book. Contents are lost on restart.
type MemoryBook struct {
	mu     sync.Mutex
	tables map[string]*MemoryTable
}

// NewMemoryBook returns an empty book.
func NewMemoryBook() *MemoryBook {
	return &MemoryBook{tables: make(map[string]*MemoryTable)}
}

func (b *MemoryBook) Table(_ context.Context, name string) (Table, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tables[name]
	if !ok {
		return nil, false, nil
	}
	return t, true, nil
}

func (b *MemoryBook) CreateTable(_ context.Context, name string) (Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.tables[name]; ok {
		return t, nil
	}
	t := &MemoryTable{name: name, styles: make(map[int]Presentation)}
	b.tables[name] = t
	return t, nil
}

// MemoryTable is a table held in a slice of rows.
type MemoryTable struct {
	mu         sync.RWMutex
	name       string
	rows       [][]string
	styles     map[int]Presentation
	widths     []int
	frozenRows int
}

func (t *MemoryTable) Name() string { return t.name }

func (t *MemoryTable) LastRow(_ context.Context) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows), nil
}

func (t *MemoryTable) WriteRow(_ context.Context, row int, values []string) error {
	if row < 1 {
		return fmt.Errorf("invalid row %d", row)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if row <= len(t.rows) && t.rows[row-1] != nil {
		return ErrRowExists
	}
	for len(t.rows) < row {
		t.rows = append(t.rows, nil)
	}
	if values == nil {
		values = []string{}
	}
	t.rows[row-1] = append([]string{}, values...)
	return nil
}

func (t *MemoryTable) ReadRow(_ context.Context, row int) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if row < 1 || row > len(t.rows) {
		return nil, ErrRowNotFound
	}
	return append([]string(nil), t.rows[row-1]...), nil
}

func (t *MemoryTable) Apply(_ context.Context, p Presentation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(p.ColumnWidths) > 0 {
		t.widths = append([]int(nil), p.ColumnWidths...)
	}
	if p.FrozenRows > 0 {
		t.frozenRows = p.FrozenRows
	}
	t.styles[p.Row] = p
	return nil
}

func (t *MemoryTable) Styled(_ context.Context, row int) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.styles[row]
	return ok, nil
}

// Rows returns a copy of every row, header included.
func (t *MemoryTable) Rows() [][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// Presentation returns what was last applied to row.
func (t *MemoryTable) Presentation(row int) (Presentation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.styles[row]
	return p, ok
}

// Layout returns the table-wide column widths and frozen row count.
func (t *MemoryTable) Layout() (widths []int, frozenRows int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]int(nil), t.widths...), t.frozenRows
}
