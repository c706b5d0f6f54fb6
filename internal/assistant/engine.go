// Package assistant runs the clarification loop: classify an utterance,
// ask for whatever is missing, then dispatch exactly one backend operation.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"spendtalk-backend/internal/expense"
	"spendtalk-backend/internal/llm"
	"spendtalk-backend/internal/store"
)

var ErrEmptyUtterance = errors.New("message is required")

type Classifier interface {
	Classify(ctx context.Context, in llm.ClassifyInput) (*llm.Classification, error)
}

type Responder interface {
	Confirm(ctx context.Context, in llm.ConfirmInput) string
}

// Reply is the assistant's answer to one user turn.
type Reply struct {
	Text    string   `json:"text"`
	Label   string   `json:"label"`
	Action  string   `json:"action,omitempty"`
	Missing []string `json:"missing,omitempty"`
	Payload any      `json:"payload,omitempty"`
}

type Engine struct {
	classifier Classifier
	responder  Responder
	expenses   expense.Store
	sessions   *store.MemoryStore
	tools      map[string]ToolDefinition
	functions  []llm.Function
	now        func() time.Time
}

func NewEngine(c Classifier, r Responder, expenses expense.Store, sessions *store.MemoryStore) *Engine {
	e := &Engine{
		classifier: c,
		responder:  r,
		expenses:   expenses,
		sessions:   sessions,
		tools:      map[string]ToolDefinition{},
		now:        time.Now,
	}
	for _, t := range Registry() {
		e.tools[t.Name] = t
		e.functions = append(e.functions, t.describe())
	}
	return e
}

// History returns the session transcript.
func (e *Engine) History(sessionID string) []store.Message {
	return e.sessions.Get(sessionID)
}

// HandleTurn processes one user utterance. Backend failures are folded into
// the reply; only classifier failures are returned as errors.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, utterance string) (Reply, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Reply{}, ErrEmptyUtterance
	}
	e.sessions.Append(sessionID, store.Message{Role: store.RoleUser, Content: utterance})

	pendingType, pendingArgs, hasPending := e.sessions.GetPendingIntent(sessionID)
	in := llm.ClassifyInput{
		History:   toLLM(e.sessions.Get(sessionID)),
		Functions: e.functions,
		Today:     e.now(),
	}
	if hasPending {
		in.Pending = &llm.Pending{Action: pendingType, Args: pendingArgs}
	}
	cls, err := e.classifier.Classify(ctx, in)
	if err != nil {
		return Reply{}, err
	}
	log.Printf("[chat] session=%s label=%s action=%s", sessionID, cls.Label, cls.Action)

	reply := e.decide(ctx, sessionID, utterance, cls, pendingType, Args(pendingArgs), hasPending)
	e.sessions.Append(sessionID, store.Message{Role: store.RoleAssistant, Content: reply.Text})
	return reply, nil
}

func (e *Engine) decide(ctx context.Context, sid, utterance string, cls *llm.Classification, pendingType string, pendingArgs Args, hasPending bool) Reply {
	action := cls.Action
	if action == "" && hasPending && (cls.Label == llm.LabelNeedsMoreInfo || cls.Label == llm.LabelReadyToAct) {
		action = pendingType
	}

	switch cls.Label {
	case llm.LabelRestricted:
		e.sessions.ClearPendingIntent(sid)
		return Reply{Text: orDefault(cls.Message, "Sorry, I can't help with that."), Label: cls.Label, Action: action}
	case llm.LabelInformational:
		return Reply{Text: orDefault(cls.Message, "I can add, list, search, update, delete and summarize your expenses."), Label: cls.Label}
	}

	tool, ok := e.tools[action]
	if !ok {
		if action == "" {
			return Reply{Text: orDefault(cls.Message, "Could you tell me a bit more?"), Label: llm.LabelNeedsMoreInfo}
		}
		e.sessions.ClearPendingIntent(sid)
		return Reply{Text: fmt.Sprintf("Sorry, I can't %s yet.", strings.ReplaceAll(action, "_", " ")), Label: llm.LabelInformational, Action: action}
	}

	args, fieldErr := CoerceArgs(tool.Declared(cls.Args), e.now())
	if hasPending && pendingType == action {
		args = merge(pendingArgs, args)
	}

	if confirm, set := args.Bool(argConfirm); set && !confirm {
		e.sessions.ClearPendingIntent(sid)
		return Reply{Text: "Okay, I won't do that.", Label: llm.LabelInformational, Action: action}
	}
	if isBulk(args.Str(argExpenseID)) {
		e.sessions.ClearPendingIntent(sid)
		return Reply{Text: "I can only change or delete one expense at a time.", Label: llm.LabelRestricted, Action: action}
	}

	if q, ok := e.resolveExpenseID(ctx, sid, args); !ok {
		e.sessions.SetPendingIntent(sid, action, args)
		return Reply{Text: q, Label: llm.LabelNeedsMoreInfo, Action: action, Missing: []string{argExpenseID}}
	}

	if fieldErr != nil {
		e.sessions.SetPendingIntent(sid, action, args)
		text := fmt.Sprintf("I couldn't read the %s %q. %s",
			strings.ReplaceAll(fieldErr.Field, "_", " "), stringify(fieldErr.Value), tool.Question(fieldErr.Field, args))
		return Reply{Text: text, Label: llm.LabelNeedsMoreInfo, Action: action, Missing: []string{fieldErr.Field}}
	}

	missing := tool.Missing(args)
	if len(missing) > 0 || (cls.Label == llm.LabelNeedsMoreInfo && cls.Message != "") {
		e.sessions.SetPendingIntent(sid, action, args)
		text := cls.Message
		if text == "" || (len(missing) > 0 && cls.Label == llm.LabelReadyToAct) {
			text = tool.Question(missing[0], args)
		}
		return Reply{Text: text, Label: llm.LabelNeedsMoreInfo, Action: action, Missing: missing}
	}

	return e.dispatch(ctx, sid, utterance, tool, args)
}

// dispatch invokes exactly one tool and phrases its outcome.
func (e *Engine) dispatch(ctx context.Context, sid, utterance string, tool ToolDefinition, args Args) Reply {
	e.sessions.ClearPendingIntent(sid)

	var payload any
	result, err := tool.Function(ctx, e.expenses, args)
	if err != nil {
		log.Printf("[dispatch] %s failed: %v", tool.Name, err)
		payload = llm.ErrorResult{Error: err.Error()}
	} else {
		payload = result
		if list, ok := result.([]expense.Expense); ok {
			e.sessions.SetLastExpenses(sid, refs(list))
		}
	}

	text := e.responder.Confirm(ctx, llm.ConfirmInput{
		Utterance: utterance,
		Action:    tool.Name,
		Args:      args,
		Result:    payload,
	})
	return Reply{Text: text, Label: llm.LabelReadyToAct, Action: tool.Name, Payload: payload}
}

// resolveExpenseID fills expense_id from match_title using the last listing,
// falling back to a title search. When the title is ambiguous or unknown it
// returns the question to ask instead.
func (e *Engine) resolveExpenseID(ctx context.Context, sid string, args Args) (string, bool) {
	title := args.Str(argMatchTitle)
	if args.Has(argExpenseID) || title == "" {
		return "", true
	}
	var candidates []store.ExpenseRef
	if cached, ok := e.sessions.GetLastExpenses(sid); ok {
		candidates = matchRefs(cached, title)
	}
	if len(candidates) == 0 {
		found, err := e.expenses.Search(ctx, title)
		if err != nil {
			log.Printf("[dispatch] resolve %q: %v", title, err)
		}
		candidates = matchRefs(refs(found), title)
	}
	switch len(candidates) {
	case 0:
		return fmt.Sprintf("I couldn't find an expense called %q. What is its id?", title), false
	case 1:
		args[argExpenseID] = candidates[0].ID
		delete(args, argMatchTitle)
		return "", true
	}
	e.sessions.SetLastExpenses(sid, candidates)
	opts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		opts = append(opts, fmt.Sprintf("#%s %s (%s)", c.ID, c.Title, c.Amount))
	}
	return "Which one do you mean: " + strings.Join(opts, ", ") + "?", false
}

func matchRefs(in []store.ExpenseRef, title string) []store.ExpenseRef {
	needle := strings.ToLower(strings.TrimSpace(title))
	var exact, partial []store.ExpenseRef
	for _, r := range in {
		t := strings.ToLower(r.Title)
		switch {
		case t == needle:
			exact = append(exact, r)
		case strings.Contains(t, needle):
			partial = append(partial, r)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return partial
}

func refs(list []expense.Expense) []store.ExpenseRef {
	out := make([]store.ExpenseRef, 0, len(list))
	for _, e := range list {
		out = append(out, store.ExpenseRef{ID: e.ID, Title: e.Title, Amount: e.Amount.StringFixed(2)})
	}
	return out
}

func isBulk(id string) bool {
	switch strings.ToLower(id) {
	case "all", "*", "everything":
		return true
	}
	return false
}

func toLLM(msgs []store.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Reset forgets the session transcript, any pending intent and the last listing.
func (e *Engine) Reset(sessionID string) {
	e.sessions.Set(sessionID, nil)
	e.sessions.ClearPendingIntent(sessionID)
	e.sessions.ClearLastExpenses(sessionID)
}
