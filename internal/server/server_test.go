package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendtalk-backend/internal/assistant"
	"spendtalk-backend/internal/config"
	"spendtalk-backend/internal/expense"
	"spendtalk-backend/internal/llm"
	"spendtalk-backend/internal/store"
	"spendtalk-backend/internal/types"
)

type stubClassifier struct {
	next *llm.Classification
	err  error
	seen []llm.ClassifyInput
}

func (s *stubClassifier) Classify(_ context.Context, in llm.ClassifyInput) (*llm.Classification, error) {
	s.seen = append(s.seen, in)
	if s.err != nil {
		return nil, s.err
	}
	c := *s.next
	return &c, nil
}

type plainResponder struct{}

func (plainResponder) Confirm(_ context.Context, in llm.ConfirmInput) string {
	return llm.Fallback(in.Action, in.Result)
}

type stubTranscriber struct{ text string }

func (s stubTranscriber) Transcribe(_ context.Context, _ string, audio io.Reader) (string, error) {
	_, _ = io.ReadAll(audio)
	return s.text, nil
}

type failingTranscriber struct{}

func (failingTranscriber) Transcribe(context.Context, string, io.Reader) (string, error) {
	return "", errors.New("whisper unavailable")
}

func newTestServer(t *testing.T, cl *stubClassifier, tr llm.Transcriber) (*Server, expense.Store) {
	t.Helper()
	st := store.NewMemoryExpenseStore()
	eng := assistant.NewEngine(cl, plainResponder{}, st, store.NewMemoryStore(0))
	s := NewServer(config.Config{AllowedOrigin: "*"}, Deps{Engine: eng, Expenses: st, Transcriber: tr})
	return s, st
}

func do(t *testing.T, h http.Handler, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &stubClassifier{}, nil)
	rec := do(t, s.Router(), http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestChatCreatesSessionAndAnswers(t *testing.T) {
	cl := &stubClassifier{next: &llm.Classification{Label: llm.LabelNeedsMoreInfo, Action: "add_expense", Args: map[string]any{"title": "jeans"}, Message: "How much did you spend?"}}
	s, _ := newTestServer(t, cl, nil)

	rec := do(t, s.Router(), http.MethodPost, "/api/chat", types.ChatRequest{Message: "I bought jeans"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, resp.SessionID, rec.Header().Get("X-Session-Id"))
	assert.Equal(t, "How much did you spend?", resp.Reply)
	require.NotNil(t, resp.Intent)
	assert.Equal(t, "add_expense", resp.Intent.Type)
	assert.Equal(t, llm.LabelNeedsMoreInfo, resp.Intent.Label)
	assert.Equal(t, []string{"amount", "category"}, resp.Intent.Missing)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, resp.SessionID, cookies[0].Value)

	hist := do(t, s.Router(), http.MethodGet, "/api/chat/history", nil, map[string]string{"X-Session-Id": resp.SessionID})
	var h types.HistoryResponse
	require.NoError(t, json.Unmarshal(hist.Body.Bytes(), &h))
	require.Len(t, h.Messages, 2)
	assert.Equal(t, "user", h.Messages[0].Role)
	assert.Equal(t, "How much did you spend?", h.Messages[1].Content)
}

func TestChatReusesHeaderSession(t *testing.T) {
	cl := &stubClassifier{next: &llm.Classification{Label: llm.LabelInformational, Message: "Hello!"}}
	s, _ := newTestServer(t, cl, nil)

	rec := do(t, s.Router(), http.MethodPost, "/api/chat", types.ChatRequest{SessionID: "body-sid", Message: "hi"}, map[string]string{"X-Session-Id": "abc"})
	var resp types.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abc", resp.SessionID)
	assert.Empty(t, rec.Result().Cookies())

	rec = do(t, s.Router(), http.MethodPost, "/api/chat", types.ChatRequest{SessionID: "body-sid", Message: "hi"}, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "body-sid", resp.SessionID)
}

func TestChatErrors(t *testing.T) {
	cl := &stubClassifier{err: errors.New("model down")}
	s, _ := newTestServer(t, cl, nil)

	rec := do(t, s.Router(), http.MethodPost, "/api/chat", types.ChatRequest{Message: "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s.Router(), http.MethodPost, "/api/chat", types.ChatRequest{Message: "hello"}, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "trouble understanding")

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatDispatchesToStore(t *testing.T) {
	cl := &stubClassifier{next: &llm.Classification{Label: llm.LabelReadyToAct, Action: "add_expense", Args: map[string]any{"title": "Coffee", "amount": 3, "category": "food"}}}
	s, st := newTestServer(t, cl, nil)

	rec := do(t, s.Router(), http.MethodPost, "/api/chat", types.ChatRequest{Message: "coffee 3 food"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Added Coffee for 3.00 under Food")

	all, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestVoice(t *testing.T) {
	cl := &stubClassifier{next: &llm.Classification{Label: llm.LabelInformational, Message: "Got it."}}

	s, _ := newTestServer(t, cl, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/voice", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	s, _ = newTestServer(t, cl, stubTranscriber{text: "I spent 20 on lunch"})
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "clip.webm")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("audio"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/voice", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "I spent 20 on lunch", resp.Transcript)
	assert.Equal(t, "Got it.", resp.Reply)
}

func TestVoiceTranscriptionFailure(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	s, _ := newTestServer(t, &stubClassifier{}, failingTranscriber{})
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "clip.webm")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("audio"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/voice", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, logs.String(), "[voice] transcription failed: whisper unavailable")
}

func TestResetSession(t *testing.T) {
	cl := &stubClassifier{next: &llm.Classification{Label: llm.LabelInformational, Message: "Hi"}}
	s, _ := newTestServer(t, cl, nil)
	hdr := map[string]string{"X-Session-Id": "s1"}
	do(t, s.Router(), http.MethodPost, "/api/chat", types.ChatRequest{Message: "hi"}, hdr)

	rec := do(t, s.Router(), http.MethodDelete, "/api/chat/session", nil, hdr)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s.Router(), http.MethodGet, "/api/chat/history", nil, hdr)
	var h types.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Empty(t, h.Messages)
}

func TestExpenseREST(t *testing.T) {
	s, _ := newTestServer(t, &stubClassifier{}, nil)
	h := s.Router()

	rec := do(t, h, http.MethodPost, "/api/expenses", map[string]any{"title": "Jeans", "amount": 2000, "category": "shopping", "date": "2026-01-05"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created expense.Expense
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "1", created.ID)
	assert.Equal(t, "Shopping", created.Category)

	rec = do(t, h, http.MethodPost, "/api/expenses", map[string]any{"title": "", "amount": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/expenses", nil, nil)
	var list []expense.Expense
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(t, h, http.MethodGet, "/api/expenses/search?title=jea", nil, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(t, h, http.MethodGet, "/api/expenses/search", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/expenses/1", map[string]any{"amount": "2500"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated expense.Expense
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(2500)))

	rec = do(t, h, http.MethodPatch, "/api/expenses/1", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/expenses/summary?category=shopping", nil, nil)
	var sum expense.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.Count)
	assert.True(t, sum.Total.Equal(decimal.NewFromInt(2500)))

	rec = do(t, h, http.MethodDelete, "/api/expenses/1", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/expenses/1", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStoreStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotImplemented, storeStatus(expense.ErrUnsupported))
	assert.Equal(t, http.StatusBadGateway, storeStatus(errors.New("dial tcp")))
}
