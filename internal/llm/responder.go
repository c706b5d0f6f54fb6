package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"spendtalk-backend/internal/expense"
)

// ErrorResult is the payload handed to the responder when a backend call fails.
type ErrorResult struct {
	Error string `json:"error"`
}

type ConfirmInput struct {
	Utterance string
	Action    string
	Args      map[string]any
	Result    any
}

type Responder struct {
	completer Completer
	spec      *PromptSpec
}

func NewResponder(c Completer, spec *PromptSpec) *Responder {
	return &Responder{completer: c, spec: spec}
}

// Confirm phrases the outcome of an action. It never fails: when the model
// is unavailable the deterministic Fallback text is returned instead.
func (r *Responder) Confirm(ctx context.Context, in ConfirmInput) string {
	argsJSON, _ := json.Marshal(in.Args)
	resultJSON, err := json.Marshal(in.Result)
	if err != nil {
		return Fallback(in.Action, in.Result)
	}
	sys := strings.TrimSpace(r.spec.Responder.System)
	if lang := r.spec.Style.Language; lang != "" {
		sys += "\nAnswer in " + lang + "."
	}
	prompt := fmt.Sprintf("User said: %s\nAction: %s\nArguments: %s\nResult JSON: %s",
		in.Utterance, in.Action, argsJSON, resultJSON)

	text, err := r.completer.Complete(ctx, Request{
		System:      sys,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		Temperature: r.spec.temperature(),
		MaxTokens:   r.spec.maxTokens(),
	})
	if err != nil {
		log.Printf("[chat] responder fallback for %s: %v", in.Action, err)
		return Fallback(in.Action, in.Result)
	}
	if text = strings.TrimSpace(text); text == "" {
		return Fallback(in.Action, in.Result)
	}
	return text
}

// Fallback formats a result without a model.
func Fallback(action string, result any) string {
	switch v := result.(type) {
	case ErrorResult:
		return "Sorry, that didn't work: " + v.Error
	case *ErrorResult:
		return "Sorry, that didn't work: " + v.Error
	case expense.Expense:
		if action == "update_expense" {
			return fmt.Sprintf("Updated expense %s: %s, %s in %s on %s.", v.ID, v.Title, v.Amount.StringFixed(2), v.Category, v.Date)
		}
		return fmt.Sprintf("Added %s for %s under %s on %s.", v.Title, v.Amount.StringFixed(2), v.Category, v.Date)
	case expense.Deletion:
		return fmt.Sprintf("Deleted expense %s.", v.ID)
	case []expense.Expense:
		if len(v) == 0 {
			return "No expenses found."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d expense(s):", len(v))
		for _, e := range v {
			fmt.Fprintf(&b, "\n- #%s %s: %s (%s, %s)", e.ID, e.Title, e.Amount.StringFixed(2), e.Category, e.Date)
		}
		return b.String()
	case expense.Summary:
		if v.Count == 0 {
			return "No expenses match that period."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "You spent %s across %d expense(s).", v.Total.StringFixed(2), v.Count)
		for _, c := range v.ByCategory {
			fmt.Fprintf(&b, "\n- %s: %s", c.Category, c.Total.StringFixed(2))
		}
		return b.String()
	}
	return "Done."
}
