package assistant

import (
	"context"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"

	"spendtalk-backend/internal/expense"
	"spendtalk-backend/internal/llm"
)

// ToolDefinition is one backend operation the assistant may invoke.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	// Questions holds the follow-up asked for each missing field. "{key}" is
	// replaced with the argument's current value.
	Questions map[string]string
	// Check lists fields that are missing beyond the schema's required ones.
	Check    func(a Args) []string
	Function func(ctx context.Context, st expense.Store, a Args) (any, error)
}

// GenerateSchema derives a closed JSON schema from T. Required fields are
// those tagged `jsonschema:"required"`.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	return reflector.Reflect(v)
}

func (t ToolDefinition) Required() []string {
	if t.InputSchema == nil {
		return nil
	}
	return t.InputSchema.Required
}

// Missing returns the fields still needed before t can run, schema order first.
func (t ToolDefinition) Missing(a Args) []string {
	var out []string
	for _, f := range t.Required() {
		if !a.Has(f) {
			out = append(out, f)
		}
	}
	if t.Check != nil {
		for _, f := range t.Check(a) {
			if !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
	}
	return out
}

// Question returns the follow-up for field with placeholders filled from a.
func (t ToolDefinition) Question(field string, a Args) string {
	q, ok := t.Questions[field]
	if !ok {
		q = "Could you tell me the " + strings.ReplaceAll(field, "_", " ") + "?"
	}
	for k, v := range a {
		q = strings.ReplaceAll(q, "{"+k+"}", stringify(v))
	}
	return q
}

// Declared keeps only the raw arguments named in t's schema.
func (t ToolDefinition) Declared(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	if t.InputSchema == nil || t.InputSchema.Properties == nil {
		return out
	}
	for k, v := range raw {
		if _, ok := t.InputSchema.Properties.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// describe presents t to the classifier.
func (t ToolDefinition) describe() llm.Function {
	return llm.Function{Name: t.Name, Description: t.Description, Parameters: t.InputSchema, Required: t.Required()}
}

type AddExpenseInput struct {
	Title    string  `json:"title" jsonschema:"required" jsonschema_description:"What the money was spent on, e.g. jeans"`
	Amount   float64 `json:"amount" jsonschema:"required" jsonschema_description:"Amount spent as a plain number"`
	Category string  `json:"category" jsonschema:"required" jsonschema_description:"Spending category, e.g. Food, Shopping, Travel"`
	Date     string  `json:"date,omitempty" jsonschema_description:"Date of the expense as YYYY-MM-DD; defaults to today"`
	Note     string  `json:"note,omitempty" jsonschema_description:"Optional free-text note"`
}

type ListExpensesInput struct {
	Keyword  string `json:"keyword,omitempty" jsonschema_description:"Text to look for in the title, category or note"`
	Category string `json:"category,omitempty" jsonschema_description:"Only include this category"`
	From     string `json:"from,omitempty" jsonschema_description:"First day to include, YYYY-MM-DD"`
	To       string `json:"to,omitempty" jsonschema_description:"Last day to include, YYYY-MM-DD"`
}

type SearchExpensesInput struct {
	Title string `json:"title" jsonschema:"required" jsonschema_description:"Part of the expense title to search for"`
}

type UpdateExpenseInput struct {
	ExpenseID  string  `json:"expense_id" jsonschema:"required" jsonschema_description:"Id of the expense to change"`
	MatchTitle string  `json:"match_title,omitempty" jsonschema_description:"Current title of the expense when its id is unknown"`
	Title      string  `json:"title,omitempty" jsonschema_description:"New title"`
	Amount     float64 `json:"amount,omitempty" jsonschema_description:"New amount"`
	Category   string  `json:"category,omitempty" jsonschema_description:"New category"`
	Date       string  `json:"date,omitempty" jsonschema_description:"New date as YYYY-MM-DD"`
	Note       string  `json:"note,omitempty" jsonschema_description:"New note"`
}

type DeleteExpenseInput struct {
	ExpenseID  string `json:"expense_id" jsonschema:"required" jsonschema_description:"Id of the expense to delete"`
	MatchTitle string `json:"match_title,omitempty" jsonschema_description:"Title of the expense when its id is unknown"`
	Confirm    bool   `json:"confirm" jsonschema:"required" jsonschema_description:"true only after the user explicitly confirmed the deletion"`
}

type SummarizeExpensesInput struct {
	Category string `json:"category,omitempty" jsonschema_description:"Only include this category"`
	From     string `json:"from,omitempty" jsonschema_description:"First day to include, YYYY-MM-DD"`
	To       string `json:"to,omitempty" jsonschema_description:"Last day to include, YYYY-MM-DD"`
}

var AddExpenseDefinition = ToolDefinition{
	Name:        "add_expense",
	Description: "Record a new expense.",
	InputSchema: GenerateSchema[AddExpenseInput](),
	Questions: map[string]string{
		argTitle:    "What did you spend the money on?",
		argAmount:   "How much did you spend on {title}?",
		argCategory: "Which category should {title} go under?",
	},
	Function: func(ctx context.Context, st expense.Store, a Args) (any, error) {
		return st.Add(ctx, expense.NewExpense{
			Title:    a.Str(argTitle),
			Amount:   a.Decimal(argAmount),
			Category: a.Str(argCategory),
			Date:     a.Str(argDate),
			Note:     a.Str(argNote),
		})
	},
}

var ListExpensesDefinition = ToolDefinition{
	Name:        "list_expenses",
	Description: "List recorded expenses, optionally filtered by keyword, category and date range.",
	InputSchema: GenerateSchema[ListExpensesInput](),
	Function: func(ctx context.Context, st expense.Store, a Args) (any, error) {
		f := expense.Filter{
			Keyword:  a.Str(argKeyword),
			Category: a.Str(argCategory),
			From:     a.Str(argFrom),
			To:       a.Str(argTo),
		}
		if f == (expense.Filter{}) {
			return st.List(ctx)
		}
		return st.Query(ctx, f)
	},
}

var SearchExpensesDefinition = ToolDefinition{
	Name:        "search_expenses",
	Description: "Find expenses whose title contains the given text.",
	InputSchema: GenerateSchema[SearchExpensesInput](),
	Questions: map[string]string{
		argTitle: "Which expense are you looking for?",
	},
	Function: func(ctx context.Context, st expense.Store, a Args) (any, error) {
		return st.Search(ctx, a.Str(argTitle))
	},
}

var UpdateExpenseDefinition = ToolDefinition{
	Name:        "update_expense",
	Description: "Change one or more fields of an existing expense.",
	InputSchema: GenerateSchema[UpdateExpenseInput](),
	Questions: map[string]string{
		argExpenseID: "Which expense do you want to change? Tell me its title or id.",
		"changes":    "What would you like to change about expense #{expense_id}?",
	},
	Check: func(a Args) []string {
		for _, f := range []string{argTitle, argAmount, argCategory, argDate, argNote} {
			if a.Has(f) {
				return nil
			}
		}
		return []string{"changes"}
	},
	Function: func(ctx context.Context, st expense.Store, a Args) (any, error) {
		p := expense.Patch{
			Title:    a.ptr(argTitle),
			Category: a.ptr(argCategory),
			Date:     a.ptr(argDate),
			Note:     a.ptr(argNote),
		}
		if a.Has(argAmount) {
			d := a.Decimal(argAmount)
			p.Amount = &d
		}
		return st.Update(ctx, a.Str(argExpenseID), p)
	},
}

var DeleteExpenseDefinition = ToolDefinition{
	Name:        "delete_expense",
	Description: "Delete a single expense. Requires the user's explicit confirmation.",
	InputSchema: GenerateSchema[DeleteExpenseInput](),
	Questions: map[string]string{
		argExpenseID: "Which expense do you want to delete? Tell me its title or id.",
		argConfirm:   "Are you sure you want to delete expense #{expense_id}? This can't be undone.",
	},
	Check: func(a Args) []string {
		if ok, _ := a.Bool(argConfirm); !ok {
			return []string{argConfirm}
		}
		return nil
	},
	Function: func(ctx context.Context, st expense.Store, a Args) (any, error) {
		id := a.Str(argExpenseID)
		if err := st.Delete(ctx, id); err != nil {
			return nil, err
		}
		return expense.Deletion{ID: id, Deleted: true}, nil
	},
}

var SummarizeExpensesDefinition = ToolDefinition{
	Name:        "summarize_expenses",
	Description: "Total spending, optionally for one category and a date range, broken down by category.",
	InputSchema: GenerateSchema[SummarizeExpensesInput](),
	Function: func(ctx context.Context, st expense.Store, a Args) (any, error) {
		return expense.SummarizeStore(ctx, st, expense.Filter{
			Category: a.Str(argCategory),
			From:     a.Str(argFrom),
			To:       a.Str(argTo),
		})
	},
}

// Registry returns the fixed set of tools the assistant can dispatch to.
func Registry() []ToolDefinition {
	return []ToolDefinition{
		AddExpenseDefinition,
		ListExpensesDefinition,
		SearchExpensesDefinition,
		UpdateExpenseDefinition,
		DeleteExpenseDefinition,
		SummarizeExpensesDefinition,
	}
}
