package assistant

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendtalk-backend/internal/expense"
	"spendtalk-backend/internal/store"
)

func TestRegistryRequiredFields(t *testing.T) {
	want := map[string][]string{
		"add_expense":        {"title", "amount", "category"},
		"list_expenses":      nil,
		"search_expenses":    {"title"},
		"update_expense":     {"expense_id"},
		"delete_expense":     {"expense_id", "confirm"},
		"summarize_expenses": nil,
	}
	reg := Registry()
	require.Len(t, reg, len(want))
	for _, tool := range reg {
		assert.ElementsMatch(t, want[tool.Name], tool.Required(), tool.Name)
	}
}

func TestSchemaIsClosedAndDescribed(t *testing.T) {
	b, err := json.Marshal(AddExpenseDefinition.InputSchema)
	require.NoError(t, err)
	var s struct {
		Type                 string                    `json:"type"`
		AdditionalProperties bool                      `json:"additionalProperties"`
		Properties           map[string]map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(b, &s))
	assert.Equal(t, "object", s.Type)
	assert.False(t, s.AdditionalProperties)
	assert.Equal(t, "number", s.Properties["amount"]["type"])
	assert.NotEmpty(t, s.Properties["title"]["description"])
}

func TestMissingAndQuestions(t *testing.T) {
	args := Args{"title": "jeans"}
	assert.Equal(t, []string{"amount", "category"}, AddExpenseDefinition.Missing(args))
	assert.Equal(t, "How much did you spend on jeans?", AddExpenseDefinition.Question("amount", args))

	assert.Equal(t, []string{"changes"}, UpdateExpenseDefinition.Missing(Args{"expense_id": "2"}))
	assert.Empty(t, UpdateExpenseDefinition.Missing(Args{"expense_id": "2", "note": "gift"}))

	assert.Equal(t, []string{"confirm"}, DeleteExpenseDefinition.Missing(Args{"expense_id": "2", "confirm": false}))
	assert.Equal(t, "Are you sure you want to delete expense #2? This can't be undone.",
		DeleteExpenseDefinition.Question("confirm", Args{"expense_id": "2"}))

	assert.Equal(t, "Could you tell me the match title?", SearchExpensesDefinition.Question("match_title", nil))
}

func TestToolFunctions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryExpenseStore()

	res, err := AddExpenseDefinition.Function(ctx, st, Args{"title": "Coffee", "amount": "3.5", "category": "food"})
	require.NoError(t, err)
	added := res.(expense.Expense)
	assert.Equal(t, "Food", added.Category)

	res, err = UpdateExpenseDefinition.Function(ctx, st, Args{"expense_id": added.ID, "amount": "4"})
	require.NoError(t, err)
	assert.Equal(t, "4.00", res.(expense.Expense).Amount.StringFixed(2))
	assert.Equal(t, "Coffee", res.(expense.Expense).Title)

	res, err = SearchExpensesDefinition.Function(ctx, st, Args{"title": "cof"})
	require.NoError(t, err)
	assert.Len(t, res.([]expense.Expense), 1)

	res, err = SummarizeExpensesDefinition.Function(ctx, st, Args{"category": "food"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.(expense.Summary).Count)

	res, err = DeleteExpenseDefinition.Function(ctx, st, Args{"expense_id": added.ID, "confirm": true})
	require.NoError(t, err)
	assert.Equal(t, expense.Deletion{ID: added.ID, Deleted: true}, res)

	_, err = DeleteExpenseDefinition.Function(ctx, st, Args{"expense_id": added.ID, "confirm": true})
	assert.ErrorIs(t, err, expense.ErrNotFound)
}

func TestDeclaredDropsUnknownArguments(t *testing.T) {
	raw := map[string]any{"date": "last week", "category": "food", "bogus": 1}
	assert.Equal(t, map[string]any{"category": "food"}, ListExpensesDefinition.Declared(raw))
	assert.Equal(t, map[string]any{"date": "last week", "category": "food"}, AddExpenseDefinition.Declared(raw))
	assert.Empty(t, ToolDefinition{}.Declared(raw))
}

func TestListExpensesFilters(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryExpenseStore()
	for _, in := range []expense.NewExpense{
		{Title: "Burger", Amount: decimal.NewFromInt(100), Category: "Food", Date: "2026-03-02"},
		{Title: "Coffee", Amount: decimal.NewFromInt(250), Category: "Food", Date: "2026-03-09", Note: "with team"},
		{Title: "Taxi", Amount: decimal.NewFromInt(40), Category: "Travel", Date: "2026-03-09"},
	} {
		_, err := st.Add(ctx, in)
		require.NoError(t, err)
	}

	res, err := ListExpensesDefinition.Function(ctx, st, Args{})
	require.NoError(t, err)
	assert.Len(t, res.([]expense.Expense), 3)

	res, err = ListExpensesDefinition.Function(ctx, st, Args{"category": "food", "from": "2026-03-05", "to": "2026-03-10"})
	require.NoError(t, err)
	list := res.([]expense.Expense)
	require.Len(t, list, 1)
	assert.Equal(t, "Coffee", list[0].Title)

	res, err = ListExpensesDefinition.Function(ctx, st, Args{"keyword": "team"})
	require.NoError(t, err)
	require.Len(t, res.([]expense.Expense), 1)
}
