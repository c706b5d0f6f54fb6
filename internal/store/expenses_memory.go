package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"spendtalk-backend/internal/expense"
)

// MemoryExpenseStore is a process-local expense list with sequential ids.
type MemoryExpenseStore struct {
	mu     sync.RWMutex
	items  []expense.Expense
	nextID int
	now    func() time.Time
}

var _ expense.Store = (*MemoryExpenseStore)(nil)

func NewMemoryExpenseStore() *MemoryExpenseStore {
	return &MemoryExpenseStore{nextID: 1, now: time.Now}
}

func (s *MemoryExpenseStore) Add(ctx context.Context, in expense.NewExpense) (expense.Expense, error) {
	if err := ctx.Err(); err != nil {
		return expense.Expense{}, err
	}
	now := s.now()
	in, err := expense.Normalize(in, now)
	if err != nil {
		return expense.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := expense.Build(strconv.Itoa(s.nextID), in, now)
	s.nextID++
	s.items = append(s.items, e)
	return e, nil
}

func (s *MemoryExpenseStore) List(ctx context.Context) ([]expense.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]expense.Expense{}, s.items...), nil
}

func (s *MemoryExpenseStore) Search(ctx context.Context, title string) ([]expense.Expense, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return expense.MatchTitle(all, title), nil
}

func (s *MemoryExpenseStore) Query(ctx context.Context, f expense.Filter) ([]expense.Expense, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return f.Apply(all), nil
}

func (s *MemoryExpenseStore) Update(ctx context.Context, id string, p expense.Patch) (expense.Expense, error) {
	if err := ctx.Err(); err != nil {
		return expense.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.items {
		if e.ID == id {
			s.items[i] = p.Apply(e)
			return s.items[i], nil
		}
	}
	return expense.Expense{}, expense.ErrNotFound
}

func (s *MemoryExpenseStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.items {
		if e.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return expense.ErrNotFound
}
