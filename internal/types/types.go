package types

type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type ChatResponse struct {
	SessionID  string          `json:"sessionId"`
	Reply      string          `json:"reply"`
	Transcript string          `json:"transcript,omitempty"`
	Intent     *IntentResponse `json:"intent,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// IntentResponse tells the frontend what the turn did so it can render
// structured results next to the reply.
type IntentResponse struct {
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Missing []string `json:"missing,omitempty"`
	Payload any      `json:"payload,omitempty"`
}

type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type HistoryResponse struct {
	SessionID string           `json:"sessionId"`
	Messages  []HistoryMessage `json:"messages"`
}
