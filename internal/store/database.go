package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendtalk-backend/internal/db"
	"spendtalk-backend/internal/expense"
)

// DatabaseStore stores expenses in PostgreSQL or SQLite
type DatabaseStore struct {
	db  *db.DB
	now func() time.Time
}

var _ expense.Store = (*DatabaseStore)(nil)

// NewDatabaseStore creates a new database store
func NewDatabaseStore(database *db.DB) *DatabaseStore {
	return &DatabaseStore{db: database, now: time.Now}
}

const selectExpenses = `SELECT id, title, amount, category, expense_date, note, created_at FROM expenses`

func (ds *DatabaseStore) Add(ctx context.Context, in expense.NewExpense) (expense.Expense, error) {
	now := ds.now()
	in, err := expense.Normalize(in, now)
	if err != nil {
		return expense.Expense{}, err
	}
	created := now.UTC()

	var id int64
	switch ds.db.Dialect {
	case db.Postgres:
		err = ds.db.QueryRowContext(ctx,
			`INSERT INTO expenses (title, amount, category, expense_date, note, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			in.Title, in.Amount.StringFixed(2), in.Category, in.Date, in.Note, created,
		).Scan(&id)
	default:
		var res sql.Result
		res, err = ds.db.ExecContext(ctx,
			`INSERT INTO expenses (title, amount, category, expense_date, note, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			in.Title, in.Amount.StringFixed(2), in.Category, in.Date, in.Note, created.Format(time.RFC3339),
		)
		if err == nil {
			id, err = res.LastInsertId()
		}
	}
	if err != nil {
		return expense.Expense{}, fmt.Errorf("failed to insert expense: %w", err)
	}
	return expense.Build(strconv.FormatInt(id, 10), in, created), nil
}

func (ds *DatabaseStore) List(ctx context.Context) ([]expense.Expense, error) {
	return ds.query(ctx, selectExpenses+` ORDER BY id`)
}

func (ds *DatabaseStore) Search(ctx context.Context, title string) ([]expense.Expense, error) {
	return ds.query(ctx, selectExpenses+` WHERE LOWER(title) LIKE ? ESCAPE '\' ORDER BY id`, likePattern(title))
}

func (ds *DatabaseStore) Query(ctx context.Context, f expense.Filter) ([]expense.Expense, error) {
	var (
		where []string
		args  []any
	)
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\' OR LOWER(note) LIKE ? ESCAPE '\')`)
		p := likePattern(kw)
		args = append(args, p, p, p)
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		where = append(where, `LOWER(category) = ?`)
		args = append(args, strings.ToLower(c))
	}
	if f.From != "" {
		where = append(where, `expense_date >= ?`)
		args = append(args, f.From)
	}
	if f.To != "" {
		where = append(where, `expense_date <= ?`)
		args = append(args, f.To)
	}
	q := selectExpenses
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	return ds.query(ctx, q+` ORDER BY id`, args...)
}

func (ds *DatabaseStore) Update(ctx context.Context, id string, p expense.Patch) (expense.Expense, error) {
	current, err := ds.get(ctx, id)
	if err != nil {
		return expense.Expense{}, err
	}
	rowID, _ := strconv.ParseInt(id, 10, 64)
	e := p.Apply(current)
	_, err = ds.db.ExecContext(ctx, ds.db.Rebind(
		`UPDATE expenses SET title = ?, amount = ?, category = ?, expense_date = ?, note = ? WHERE id = ?`),
		e.Title, e.Amount.StringFixed(2), e.Category, e.Date, e.Note, rowID,
	)
	if err != nil {
		return expense.Expense{}, fmt.Errorf("failed to update expense: %w", err)
	}
	return e, nil
}

func (ds *DatabaseStore) Delete(ctx context.Context, id string) error {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return expense.ErrNotFound
	}
	res, err := ds.db.ExecContext(ctx, ds.db.Rebind(`DELETE FROM expenses WHERE id = ?`), rowID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return expense.ErrNotFound
	}
	return nil
}

func (ds *DatabaseStore) get(ctx context.Context, id string) (expense.Expense, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return expense.Expense{}, expense.ErrNotFound
	}
	list, err := ds.query(ctx, selectExpenses+` WHERE id = ?`, rowID)
	if err != nil {
		return expense.Expense{}, err
	}
	if len(list) == 0 {
		return expense.Expense{}, expense.ErrNotFound
	}
	return list[0], nil
}

func (ds *DatabaseStore) query(ctx context.Context, q string, args ...any) ([]expense.Expense, error) {
	rows, err := ds.db.QueryContext(ctx, ds.db.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	out := make([]expense.Expense, 0)
	for rows.Next() {
		var (
			e       expense.Expense
			id      int64
			amount  decimal.Decimal
			created any
		)
		if err := rows.Scan(&id, &e.Title, &amount, &e.Category, &e.Date, &e.Note, &created); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.ID = strconv.FormatInt(id, 10)
		e.Amount = amount
		e.CreatedAt = parseCreatedAt(created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches s literally anywhere in the column.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}

// parseCreatedAt accepts the native timestamp from postgres and the RFC3339 text sqlite stores.
func parseCreatedAt(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts
		}
	case []byte:
		if ts, err := time.Parse(time.RFC3339, string(t)); err == nil {
			return ts
		}
	}
	return time.Time{}
}
