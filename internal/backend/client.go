// Package backend talks to the remote expense service over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"spendtalk-backend/internal/expense"
)

// Client implements expense.Store against the remote service.
// The remote only knows add, list and title search; Query filters the list locally.
type Client struct {
	httpClient *http.Client
	baseURL    string
	now        func() time.Time
}

var _ expense.Store = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithClientCredentials authenticates every request with an OAuth2 client-credentials token.
func WithClientCredentials(clientID, clientSecret, tokenURL string, scopes []string) Option {
	return func(c *Client) {
		cfg := clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
		authed := cfg.Client(ctx)
		authed.Timeout = c.httpClient.Timeout
		c.httpClient = authed
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend %s %s failed: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return b, nil
}

type addRequest struct {
	Title    string      `json:"title"`
	Amount   json.Number `json:"amount"`
	Category string      `json:"category"`
}

func (c *Client) Add(ctx context.Context, in expense.NewExpense) (expense.Expense, error) {
	now := c.now()
	in, err := expense.Normalize(in, now)
	if err != nil {
		return expense.Expense{}, err
	}
	payload, err := json.Marshal(addRequest{
		Title:    in.Title,
		Amount:   json.Number(in.Amount.String()),
		Category: in.Category,
	})
	if err != nil {
		return expense.Expense{}, err
	}
	b, err := c.do(ctx, http.MethodPost, "/api/expenses", bytes.NewReader(payload))
	if err != nil {
		return expense.Expense{}, err
	}
	created := expense.Build("", in, now)
	root := gjson.ParseBytes(b)
	for _, path := range []string{"expense", "data"} {
		if r := root.Get(path); r.IsObject() {
			root = r
			break
		}
	}
	return mergeExpense(created, root), nil
}

func (c *Client) List(ctx context.Context) ([]expense.Expense, error) {
	b, err := c.do(ctx, http.MethodGet, "/api/expenses", nil)
	if err != nil {
		return nil, err
	}
	return parseList(b), nil
}

func (c *Client) Search(ctx context.Context, title string) ([]expense.Expense, error) {
	q := url.Values{}
	q.Set("title", title)
	b, err := c.do(ctx, http.MethodGet, "/api/expenses/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return parseList(b), nil
}

func (c *Client) Query(ctx context.Context, f expense.Filter) ([]expense.Expense, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	return f.Apply(all), nil
}

func (c *Client) Update(context.Context, string, expense.Patch) (expense.Expense, error) {
	return expense.Expense{}, fmt.Errorf("update: %w", expense.ErrUnsupported)
}

func (c *Client) Delete(context.Context, string) error {
	return fmt.Errorf("delete: %w", expense.ErrUnsupported)
}

func parseList(b []byte) []expense.Expense {
	root := gjson.ParseBytes(b)
	if !root.IsArray() {
		for _, path := range []string{"data", "expenses"} {
			if r := root.Get(path); r.IsArray() {
				root = r
				break
			}
		}
	}
	out := make([]expense.Expense, 0)
	root.ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			out = append(out, mergeExpense(expense.Expense{}, v))
		}
		return true
	})
	return out
}

// mergeExpense overlays whatever fields the remote returned onto base.
func mergeExpense(base expense.Expense, r gjson.Result) expense.Expense {
	for _, path := range []string{"id", "_id", "data.id", "expense.id"} {
		if v := r.Get(path); v.Exists() && v.String() != "" {
			base.ID = v.String()
			break
		}
	}
	if v := r.Get("title"); v.Exists() {
		base.Title = v.String()
	}
	if v := r.Get("amount"); v.Exists() {
		if d, err := decimal.NewFromString(v.String()); err == nil {
			base.Amount = d
		}
	}
	if v := r.Get("category"); v.Exists() {
		base.Category = v.String()
	}
	if v := r.Get("note"); v.Exists() {
		base.Note = v.String()
	}
	if v := r.Get("date"); v.Exists() && v.String() != "" {
		base.Date = v.String()
	}
	if v := r.Get("createdAt"); v.Exists() {
		if ts, err := time.Parse(time.RFC3339, v.String()); err == nil {
			base.CreatedAt = ts
			if base.Date == "" {
				base.Date = ts.Format(expense.DateLayout)
			}
		}
	}
	return base
}
