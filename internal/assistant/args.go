package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendtalk-backend/internal/expense"
)

// Argument names shared by the tools.
const (
	argTitle      = "title"
	argAmount     = "amount"
	argCategory   = "category"
	argDate       = "date"
	argNote       = "note"
	argExpenseID  = "expense_id"
	argMatchTitle = "match_title"
	argConfirm    = "confirm"
	argFrom       = "from"
	argTo         = "to"
	argKeyword    = "keyword"
)

var amountPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Args holds coerced tool arguments. Amounts are decimal strings, dates are
// YYYY-MM-DD, ids are strings and confirm is a bool.
type Args map[string]any

func (a Args) Str(key string) string {
	s, _ := a[key].(string)
	return s
}

func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

func (a Args) Decimal(key string) decimal.Decimal {
	d, _ := decimal.NewFromString(a.Str(key))
	return d
}

func (a Args) Bool(key string) (value, ok bool) {
	value, ok = a[key].(bool)
	return value, ok
}

// ptr returns a pointer to the string value when key is present.
func (a Args) ptr(key string) *string {
	if !a.Has(key) {
		return nil
	}
	s := a.Str(key)
	return &s
}

// FieldError reports an argument the model supplied but that could not be read.
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %v: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// CoerceArgs converts raw model arguments to their canonical form. Empty
// values are dropped. The first unreadable field is returned as a FieldError
// and left out of the result.
func CoerceArgs(raw map[string]any, now time.Time) (Args, *FieldError) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := Args{}
	var firstErr *FieldError
	for _, k := range keys {
		v := raw[k]
		if v == nil {
			continue
		}
		var (
			val any
			err error
		)
		switch k {
		case argAmount:
			var d decimal.Decimal
			if d, err = ParseAmount(v); err == nil {
				val = d.String()
			}
		case argDate, argFrom, argTo:
			val, err = ParseDate(v, now)
		case argExpenseID:
			val, err = ParseID(v)
		case argConfirm:
			val, err = ParseBool(v)
		default:
			s := strings.TrimSpace(stringify(v))
			if s == "" {
				continue
			}
			val = s
		}
		if err != nil {
			if firstErr == nil {
				firstErr = &FieldError{Field: k, Value: v, Err: err}
			}
			continue
		}
		if s, ok := val.(string); ok && s == "" {
			continue
		}
		out[k] = val
	}
	return out, firstErr
}

// ParseAmount reads a positive amount from a number or from text such as "2000 Rs" or "1,234.50".
func ParseAmount(v any) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch x := v.(type) {
	case float64:
		d = decimal.NewFromFloat(x)
	case float32:
		d = decimal.NewFromFloat32(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case json.Number:
		d, err = decimal.NewFromString(string(x))
	case decimal.Decimal:
		d = x
	case string:
		m := amountPattern.FindString(strings.ReplaceAll(x, ",", ""))
		if m == "" {
			return decimal.Zero, errors.New("no number found")
		}
		d, err = decimal.NewFromString(m)
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, errors.New("must be positive")
	}
	return d, nil
}

// ParseDate accepts YYYY-MM-DD, RFC3339 timestamps, "today" and "yesterday".
func ParseDate(v any, now time.Time) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unsupported type %T", v)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return "", nil
	case "today":
		return now.Format(expense.DateLayout), nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(expense.DateLayout), nil
	}
	if t, err := time.Parse(expense.DateLayout, s); err == nil {
		return t.Format(expense.DateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, strings.ToUpper(s)); err == nil {
		return t.Format(expense.DateLayout), nil
	}
	return "", errors.New("expected YYYY-MM-DD")
}

// ParseID accepts numeric or string ids, with or without a leading '#'.
func ParseID(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return strings.TrimPrefix(strings.TrimSpace(x), "#"), nil
	case float64:
		if x != float64(int64(x)) {
			return "", errors.New("not a whole number")
		}
		return strconv.FormatInt(int64(x), 10), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case json.Number:
		return x.String(), nil
	}
	return "", fmt.Errorf("unsupported type %T", v)
}

func ParseBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "sure", "confirm", "confirmed", "ok", "okay":
			return true, nil
		case "false", "no", "n", "cancel", "nope":
			return false, nil
		}
	}
	return false, fmt.Errorf("cannot read %v as yes or no", v)
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// merge overlays next onto prev without mutating either.
func merge(prev, next Args) Args {
	out := make(Args, len(prev)+len(next))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range next {
		out[k] = v
	}
	return out
}
