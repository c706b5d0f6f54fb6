// Package llm wraps the chat models used to classify utterances and phrase replies.
package llm

import (
	"context"
	"errors"
	"io"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrNoChoices = errors.New("model returned no choices")

type Message struct {
	Role    string
	Content string
}

// Request is one provider-neutral completion call.
type Request struct {
	System      string
	Messages    []Message
	Temperature float32
	MaxTokens   int
	// JSON asks providers that support it to constrain output to a JSON object.
	JSON bool
}

type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}
