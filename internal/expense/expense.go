package expense

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format for expense dates.
const DateLayout = "2006-01-02"

var (
	ErrNotFound    = errors.New("expense not found")
	ErrUnsupported = errors.New("operation not supported by this store")
	ErrInvalid     = errors.New("invalid expense")
)

// Expense is a single recorded spend.
type Expense struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	Date      string          `json:"date"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewExpense is the input to Store.Add. The store assigns the id.
type NewExpense struct {
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
	Date     string          `json:"date,omitempty"`
	Note     string          `json:"note,omitempty"`
}

// Patch carries the fields to change on update; nil fields are left as is.
type Patch struct {
	Title    *string          `json:"title,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Category *string          `json:"category,omitempty"`
	Date     *string          `json:"date,omitempty"`
	Note     *string          `json:"note,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Amount == nil && p.Category == nil && p.Date == nil && p.Note == nil
}

// Apply returns a copy of e with the patch applied.
func (p Patch) Apply(e Expense) Expense {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = NormalizeCategory(*p.Category)
	}
	if p.Date != nil {
		e.Date = strings.TrimSpace(*p.Date)
	}
	if p.Note != nil {
		e.Note = strings.TrimSpace(*p.Note)
	}
	return e
}

// Store is implemented by every expense backend.
type Store interface {
	Add(ctx context.Context, in NewExpense) (Expense, error)
	List(ctx context.Context) ([]Expense, error)
	// Search matches title case-insensitively by substring.
	Search(ctx context.Context, title string) ([]Expense, error)
	Query(ctx context.Context, f Filter) ([]Expense, error)
	Update(ctx context.Context, id string, p Patch) (Expense, error)
	Delete(ctx context.Context, id string) error
}

// Normalize trims the input, title-cases the category and defaults the date.
func Normalize(in NewExpense, now time.Time) (NewExpense, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = NormalizeCategory(in.Category)
	in.Note = strings.TrimSpace(in.Note)
	in.Date = strings.TrimSpace(in.Date)
	if in.Date == "" {
		in.Date = now.Format(DateLayout)
	}
	if in.Title == "" {
		return in, errors.Join(ErrInvalid, errors.New("title is required"))
	}
	if !in.Amount.IsPositive() {
		return in, errors.Join(ErrInvalid, errors.New("amount must be positive"))
	}
	if _, err := time.Parse(DateLayout, in.Date); err != nil {
		return in, errors.Join(ErrInvalid, errors.New("date must be YYYY-MM-DD"))
	}
	return in, nil
}

// NormalizeCategory returns the category with its first letter upper-cased.
func NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return ""
	}
	r := []rune(strings.ToLower(c))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Build turns a normalized input into a stored expense.
func Build(id string, in NewExpense, now time.Time) Expense {
	return Expense{
		ID:        id,
		Title:     in.Title,
		Amount:    in.Amount,
		Category:  in.Category,
		Date:      in.Date,
		Note:      in.Note,
		CreatedAt: now.UTC(),
	}
}

// Deletion reports a removed expense.
type Deletion struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
