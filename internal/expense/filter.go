package expense

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Filter narrows a listing. Zero fields match everything; date bounds are inclusive.
type Filter struct {
	Keyword  string `json:"keyword,omitempty"`
	Category string `json:"category,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Expense) bool {
	if kw := strings.ToLower(strings.TrimSpace(f.Keyword)); kw != "" {
		if !strings.Contains(strings.ToLower(e.Title), kw) &&
			!strings.Contains(strings.ToLower(e.Category), kw) &&
			!strings.Contains(strings.ToLower(e.Note), kw) {
			return false
		}
	}
	if c := strings.TrimSpace(f.Category); c != "" && !strings.EqualFold(c, e.Category) {
		return false
	}
	if f.From != "" && e.Date < f.From {
		return false
	}
	if f.To != "" && e.Date > f.To {
		return false
	}
	return true
}

// Apply returns the expenses matching f, preserving order.
func (f Filter) Apply(in []Expense) []Expense {
	out := make([]Expense, 0, len(in))
	for _, e := range in {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// MatchTitle is the title search used by Store.Search.
func MatchTitle(in []Expense, title string) []Expense {
	needle := strings.ToLower(strings.TrimSpace(title))
	out := make([]Expense, 0)
	for _, e := range in {
		if strings.Contains(strings.ToLower(e.Title), needle) {
			out = append(out, e)
		}
	}
	return out
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

type Summary struct {
	Filter     Filter          `json:"filter"`
	Count      int             `json:"count"`
	Total      decimal.Decimal `json:"total"`
	ByCategory []CategoryTotal `json:"byCategory"`
}

// Summarize aggregates expenses by category, largest total first.
func Summarize(in []Expense) Summary {
	byCat := map[string]*CategoryTotal{}
	s := Summary{Total: decimal.Zero}
	for _, e := range in {
		s.Count++
		s.Total = s.Total.Add(e.Amount)
		cat := e.Category
		if cat == "" {
			cat = "Uncategorized"
		}
		ct, ok := byCat[cat]
		if !ok {
			ct = &CategoryTotal{Category: cat, Total: decimal.Zero}
			byCat[cat] = ct
		}
		ct.Count++
		ct.Total = ct.Total.Add(e.Amount)
	}
	s.ByCategory = make([]CategoryTotal, 0, len(byCat))
	for _, ct := range byCat {
		s.ByCategory = append(s.ByCategory, *ct)
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		a, b := s.ByCategory[i], s.ByCategory[j]
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c > 0
		}
		return a.Category < b.Category
	})
	return s
}

// SummarizeStore queries st with f and aggregates the result.
func SummarizeStore(ctx context.Context, st Store, f Filter) (Summary, error) {
	list, err := st.Query(ctx, f)
	if err != nil {
		return Summary{}, err
	}
	s := Summarize(list)
	s.Filter = f
	return s, nil
}
