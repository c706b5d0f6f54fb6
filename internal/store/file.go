package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"spendtalk-backend/internal/expense"
)

const ledgerSchemaVersion = 1

type ledgerFile struct {
	Version  int            `toml:"version"`
	NextID   int            `toml:"next_id"`
	Expenses []ledgerRecord `toml:"expenses"`
}

type ledgerRecord struct {
	ID        string    `toml:"id"`
	Title     string    `toml:"title"`
	Amount    string    `toml:"amount"`
	Category  string    `toml:"category"`
	Date      string    `toml:"date"`
	Note      string    `toml:"note,omitempty"`
	CreatedAt time.Time `toml:"created_at"`
}

// FileExpenseStore persists the expense ledger as a TOML file on disk.
// Every mutation rewrites the whole file.
type FileExpenseStore struct {
	path string
	mu   sync.RWMutex
	now  func() time.Time
}

var _ expense.Store = (*FileExpenseStore)(nil)

func NewFileExpenseStore(path string) *FileExpenseStore {
	return &FileExpenseStore{path: path, now: time.Now}
}

func (f *FileExpenseStore) read() (ledgerFile, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ledgerFile{Version: ledgerSchemaVersion, NextID: 1}, nil
		}
		return ledgerFile{}, err
	}
	var lf ledgerFile
	if err := toml.Unmarshal(b, &lf); err != nil {
		return ledgerFile{}, fmt.Errorf("decode ledger %s: %w", f.path, err)
	}
	if lf.Version > ledgerSchemaVersion {
		return ledgerFile{}, fmt.Errorf("unsupported ledger version %d (current %d)", lf.Version, ledgerSchemaVersion)
	}
	if lf.Version == 0 {
		lf.Version = ledgerSchemaVersion
	}
	if lf.NextID <= 0 {
		lf.NextID = len(lf.Expenses) + 1
	}
	return lf, nil
}

func (f *FileExpenseStore) write(lf ledgerFile) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	b, err := toml.Marshal(lf)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileExpenseStore) Add(ctx context.Context, in expense.NewExpense) (expense.Expense, error) {
	if err := ctx.Err(); err != nil {
		return expense.Expense{}, err
	}
	now := f.now()
	in, err := expense.Normalize(in, now)
	if err != nil {
		return expense.Expense{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lf, err := f.read()
	if err != nil {
		return expense.Expense{}, err
	}
	e := expense.Build(strconv.Itoa(lf.NextID), in, now)
	lf.NextID++
	lf.Expenses = append(lf.Expenses, toRecord(e))
	if err := f.write(lf); err != nil {
		return expense.Expense{}, fmt.Errorf("write ledger: %w", err)
	}
	return e, nil
}

func (f *FileExpenseStore) List(ctx context.Context) ([]expense.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	lf, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make([]expense.Expense, 0, len(lf.Expenses))
	for _, r := range lf.Expenses {
		e, err := fromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *FileExpenseStore) Search(ctx context.Context, title string) ([]expense.Expense, error) {
	all, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	return expense.MatchTitle(all, title), nil
}

func (f *FileExpenseStore) Query(ctx context.Context, flt expense.Filter) ([]expense.Expense, error) {
	all, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	return flt.Apply(all), nil
}

func (f *FileExpenseStore) Update(ctx context.Context, id string, p expense.Patch) (expense.Expense, error) {
	if err := ctx.Err(); err != nil {
		return expense.Expense{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lf, err := f.read()
	if err != nil {
		return expense.Expense{}, err
	}
	for i, r := range lf.Expenses {
		if r.ID != id {
			continue
		}
		e, err := fromRecord(r)
		if err != nil {
			return expense.Expense{}, err
		}
		e = p.Apply(e)
		lf.Expenses[i] = toRecord(e)
		if err := f.write(lf); err != nil {
			return expense.Expense{}, fmt.Errorf("write ledger: %w", err)
		}
		return e, nil
	}
	return expense.Expense{}, expense.ErrNotFound
}

func (f *FileExpenseStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lf, err := f.read()
	if err != nil {
		return err
	}
	for i, r := range lf.Expenses {
		if r.ID == id {
			lf.Expenses = append(lf.Expenses[:i], lf.Expenses[i+1:]...)
			if err := f.write(lf); err != nil {
				return fmt.Errorf("write ledger: %w", err)
			}
			return nil
		}
	}
	return expense.ErrNotFound
}

func toRecord(e expense.Expense) ledgerRecord {
	return ledgerRecord{
		ID:        e.ID,
		Title:     e.Title,
		Amount:    e.Amount.StringFixed(2),
		Category:  e.Category,
		Date:      e.Date,
		Note:      e.Note,
		CreatedAt: e.CreatedAt,
	}
}

func fromRecord(r ledgerRecord) (expense.Expense, error) {
	amt, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return expense.Expense{}, fmt.Errorf("expense %s: bad amount %q: %w", r.ID, r.Amount, err)
	}
	return expense.Expense{
		ID:        r.ID,
		Title:     r.Title,
		Amount:    amt,
		Category:  r.Category,
		Date:      r.Date,
		Note:      r.Note,
		CreatedAt: r.CreatedAt,
	}, nil
}
