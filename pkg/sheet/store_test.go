package sheet

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navarrastar/contactsheet/pkg/models"
)

const testTable = "Form Responses"

func testRecord(name string) models.Record {
	return models.Record{
		Submission: models.Submission{
			FullName:      name,
			Email:         "test@example.com",
			StreetAddress: "123 Test Street",
			City:          "London",
			Postcode:      "SW1A 1AA",
		},
		Timestamp: time.Date(2024, 7, 1, 12, 30, 45, 0, time.UTC),
	}
}

func memoryTable(t *testing.T, book *MemoryBook) *MemoryTable {
	t.Helper()
	tbl, ok, err := book.Table(context.Background(), testTable)
	require.NoError(t, err)
	require.True(t, ok)
	return tbl.(*MemoryTable)
}

func TestEnsureInitialized(t *testing.T) {
	ctx := context.Background()

	t.Run("empty table gets header and presentation", func(t *testing.T) {
		book := NewMemoryBook()
		tbl, err := book.CreateTable(ctx, testTable)
		require.NoError(t, err)

		require.NoError(t, EnsureInitialized(ctx, tbl))

		mt := tbl.(*MemoryTable)
		assert.Equal(t, [][]string{Header}, mt.Rows())

		p, ok := mt.Presentation(1)
		require.True(t, ok)
		assert.True(t, p.Bold)
		assert.Equal(t, HeaderBackground, p.Background)
		assert.Equal(t, HeaderFontColor, p.FontColor)

		widths, frozen := mt.Layout()
		assert.Equal(t, ColumnWidths, widths)
		assert.Equal(t, 1, frozen)
	})

	t.Run("header-only table is left alone", func(t *testing.T) {
		book := NewMemoryBook()
		tbl, _ := book.CreateTable(ctx, testTable)
		require.NoError(t, EnsureInitialized(ctx, tbl))
		require.NoError(t, EnsureInitialized(ctx, tbl))

		assert.Len(t, tbl.(*MemoryTable).Rows(), 1)
	})

	t.Run("header and data rows are untouched", func(t *testing.T) {
		book := NewMemoryBook()
		store := NewStore(book, testTable)
		_, err := store.Append(ctx, testRecord("Ann Smith"))
		require.NoError(t, err)

		mt := memoryTable(t, book)
		before := mt.Rows()
		require.NoError(t, EnsureInitialized(ctx, mt))
		assert.Empty(t, cmp.Diff(before, mt.Rows()))
	})
}

func TestStore_AppendToEmptyBook(t *testing.T) {
	ctx := context.Background()
	book := NewMemoryBook()
	store := NewStore(book, testTable)

	row, err := store.Append(ctx, testRecord("Test User"))
	require.NoError(t, err)
	assert.Equal(t, 2, row)

	rows := memoryTable(t, book).Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "Test User", rows[1][1])
}

func TestStore_RowsIncreaseByOne(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBook(), testTable)

	for want := 2; want < 8; want++ {
		row, err := store.Append(ctx, testRecord("Test User"))
		require.NoError(t, err)
		assert.Equal(t, want, row)
	}
}

func TestStore_ConcurrentAppendsNeverCollide(t *testing.T) {
	ctx := context.Background()
	book := NewMemoryBook()
	store := NewStore(book, testTable)

	const n = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		rows []int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			row, err := store.Append(ctx, testRecord("Test User"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			rows = append(rows, row)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Ints(rows)
	want := make([]int, n)
	for i := range want {
		want[i] = i + 2
	}
	assert.Equal(t, want, rows)
	assert.Len(t, memoryTable(t, book).Rows(), n+1)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	store := NewStore(NewMemoryBook(), testTable, WithLocation(london))

	rec := testRecord("Test User")
	rec.Comments = "Leave at the door"
	row, err := store.Append(ctx, rec)
	require.NoError(t, err)

	got, err := store.Read(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, row, got.Number)
	assert.Equal(t, "01/07/2024 13:30:45", got.Timestamp)
	assert.Empty(t, cmp.Diff(rec.Submission, got.Submission))
	assert.Equal(t, "", got.Submission.Phone)
}

func TestStore_OptionalFieldsWrittenAsEmptyStrings(t *testing.T) {
	ctx := context.Background()
	book := NewMemoryBook()
	store := NewStore(book, testTable)

	_, err := store.Append(ctx, testRecord("Test User"))
	require.NoError(t, err)

	data := memoryTable(t, book).Rows()[1]
	require.Len(t, data, len(Header))
	assert.Equal(t, "", data[3])
	assert.Equal(t, "", data[7])
}

func TestStore_RowPresentation(t *testing.T) {
	ctx := context.Background()
	book := NewMemoryBook()
	store := NewStore(book, testTable)

	for i := 0; i < 2; i++ {
		_, err := store.Append(ctx, testRecord("Test User"))
		require.NoError(t, err)
	}
	mt := memoryTable(t, book)

	even, ok := mt.Presentation(2)
	require.True(t, ok)
	assert.Equal(t, EvenRowColor, even.Background)
	assert.Equal(t, "mailto:test@example.com", even.Links[EmailColumn])

	odd, ok := mt.Presentation(3)
	require.True(t, ok)
	assert.Equal(t, OddRowColor, odd.Background)
}

func TestRowPresentation_NoLinkWithoutEmail(t *testing.T) {
	p := RowPresentation(4, []string{"ts", "name", ""})
	assert.Nil(t, p.Links)
}

func TestStore_ReadErrors(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBook(), testTable)

	_, err := store.Read(ctx, 2)
	assert.ErrorIs(t, err, ErrRowNotFound)

	_, err = store.Append(ctx, testRecord("Test User"))
	require.NoError(t, err)

	_, err = store.Read(ctx, 1)
	assert.Error(t, err)

	_, err = store.Read(ctx, 3)
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestStore_Init(t *testing.T) {
	ctx := context.Background()
	book := NewMemoryBook()
	store := NewStore(book, testTable)

	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Init(ctx))
	assert.Len(t, memoryTable(t, book).Rows(), 1)

	row, err := store.Append(ctx, testRecord("Test User"))
	require.NoError(t, err)
	assert.Equal(t, 2, row)
}

var errUnreachable = errors.New("store unreachable")

type brokenBook struct{}

func (brokenBook) Table(context.Context, string) (Table, bool, error) {
	return nil, false, errUnreachable
}

func (brokenBook) CreateTable(context.Context, string) (Table, error) {
	return nil, errUnreachable
}

type rejectingTable struct {
	*MemoryTable
	rejectFrom int
}

func (t *rejectingTable) WriteRow(ctx context.Context, row int, values []string) error {
	if row >= t.rejectFrom {
		return errors.New("write rejected")
	}
	return t.MemoryTable.WriteRow(ctx, row, values)
}

type singleTableBook struct{ t Table }

func (b singleTableBook) Table(context.Context, string) (Table, bool, error) { return b.t, true, nil }
func (b singleTableBook) CreateTable(context.Context, string) (Table, error) { return b.t, nil }

func TestStore_PersistenceErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("store unreachable", func(t *testing.T) {
		store := NewStore(brokenBook{}, testTable)
		row, err := store.Append(ctx, testRecord("Test User"))
		assert.Zero(t, row)

		var pe *PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.ErrorIs(t, err, errUnreachable)
		assert.Equal(t, "open", pe.Op)
	})

	t.Run("write rejected leaves no row", func(t *testing.T) {
		mem := &MemoryTable{name: testTable, styles: make(map[int]Presentation)}
		tbl := &rejectingTable{MemoryTable: mem, rejectFrom: 3}
		store := NewStore(singleTableBook{t: tbl}, testTable)

		row, err := store.Append(ctx, testRecord("First"))
		require.NoError(t, err)
		assert.Equal(t, 2, row)

		row, err = store.Append(ctx, testRecord("Second"))
		assert.Zero(t, row)
		var pe *PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "write", pe.Op)

		last, err := tbl.LastRow(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, last)
	})

	t.Run("header write rejected", func(t *testing.T) {
		mem := &MemoryTable{name: testTable, styles: make(map[int]Presentation)}
		tbl := &rejectingTable{MemoryTable: mem, rejectFrom: 1}
		store := NewStore(singleTableBook{t: tbl}, testTable)

		_, err := store.Append(ctx, testRecord("First"))
		var pe *PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "initialize", pe.Op)
	})
}

// cancelAfterWrite cancels the caller's context as soon as a data row lands,
// the way a client that gives up mid-request would.
type cancelAfterWrite struct {
	*MemoryTable
	cancel context.CancelFunc
}

func (t *cancelAfterWrite) WriteRow(ctx context.Context, row int, values []string) error {
	if err := t.MemoryTable.WriteRow(ctx, row, values); err != nil {
		return err
	}
	if row > 1 {
		t.cancel()
	}
	return nil
}

func (t *cancelAfterWrite) Apply(ctx context.Context, p Presentation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.MemoryTable.Apply(ctx, p)
}

func TestStore_AppendCompletesAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := &MemoryTable{name: testTable, styles: make(map[int]Presentation)}
	tbl := &cancelAfterWrite{MemoryTable: mem, cancel: cancel}
	store := NewStore(singleTableBook{t: tbl}, testTable)

	row, err := store.Append(ctx, testRecord("Test User"))
	require.NoError(t, err)
	assert.Equal(t, 2, row)
	assert.Error(t, ctx.Err())

	p, ok := mem.Presentation(2)
	require.True(t, ok, "row formatting still applied")
	assert.Equal(t, EvenRowColor, p.Background)

	// A caller that is already gone never gets as far as the lock.
	_, err = store.Append(ctx, testRecord("Late"))
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "lock", pe.Op)
	assert.Len(t, mem.Rows(), 2)
}

// failHeaderStyleOnce fails the first header Apply only.
type failHeaderStyleOnce struct {
	*MemoryTable
	failed bool
}

func (t *failHeaderStyleOnce) Apply(ctx context.Context, p Presentation) error {
	if p.Row == 1 && !t.failed {
		t.failed = true
		return errors.New("formatting quota exceeded")
	}
	return t.MemoryTable.Apply(ctx, p)
}

func TestStore_HeaderFormattingRestoredAfterPartialInit(t *testing.T) {
	ctx := context.Background()
	mem := &MemoryTable{name: testTable, styles: make(map[int]Presentation)}
	store := NewStore(singleTableBook{t: &failHeaderStyleOnce{MemoryTable: mem}}, testTable)

	_, err := store.Append(ctx, testRecord("First"))
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "initialize", pe.Op)
	assert.Len(t, mem.Rows(), 1, "header written before formatting failed")

	row, err := store.Append(ctx, testRecord("Second"))
	require.NoError(t, err)
	assert.Equal(t, 2, row)

	p, ok := mem.Presentation(1)
	require.True(t, ok)
	assert.True(t, p.Bold)
	widths, frozen := mem.Layout()
	assert.Equal(t, ColumnWidths, widths)
	assert.Equal(t, 1, frozen)
	assert.Equal(t, Header, mem.Rows()[0])
}

// staleLastRow under-reports the last row while stale is set, like a writer
// whose lock expired while another server appended.
type staleLastRow struct {
	*MemoryTable
	stale bool
}

func (t *staleLastRow) LastRow(ctx context.Context) (int, error) {
	last, err := t.MemoryTable.LastRow(ctx)
	if t.stale && last > 1 {
		return last - 1, err
	}
	return last, err
}

func TestStore_OccupiedRowIsNeverReplaced(t *testing.T) {
	ctx := context.Background()
	mem := &MemoryTable{name: testTable, styles: make(map[int]Presentation)}
	tbl := &staleLastRow{MemoryTable: mem}
	store := NewStore(singleTableBook{t: tbl}, testTable)

	_, err := store.Append(ctx, testRecord("Ann Smith"))
	require.NoError(t, err)

	tbl.stale = true
	row, err := store.Append(ctx, testRecord("Bob Jones"))
	assert.Zero(t, row)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, ErrRowExists)
	assert.Equal(t, "write", pe.Op)

	got, err := store.Read(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Ann Smith", got.Submission.FullName)
}

func TestMemoryTable_WriteRowRefusesOccupiedRow(t *testing.T) {
	ctx := context.Background()
	tbl, err := NewMemoryBook().CreateTable(ctx, testTable)
	require.NoError(t, err)

	require.NoError(t, tbl.WriteRow(ctx, 1, Header))
	assert.ErrorIs(t, tbl.WriteRow(ctx, 1, Header), ErrRowExists)
	require.NoError(t, tbl.WriteRow(ctx, 3, []string{"gap"}))
	require.NoError(t, tbl.WriteRow(ctx, 2, []string{"fills gap"}))
	assert.ErrorIs(t, tbl.WriteRow(ctx, 2, nil), ErrRowExists)
}
