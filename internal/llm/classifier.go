package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Canonical labels returned by Classify.
const (
	LabelNeedsMoreInfo = "needs_more_info"
	LabelReadyToAct    = "ready_to_act"
	LabelInformational = "informational"
	LabelRestricted    = "restricted"
)

var labelAliases = map[string]string{
	LabelNeedsMoreInfo: LabelNeedsMoreInfo,
	LabelReadyToAct:    LabelReadyToAct,
	LabelInformational: LabelInformational,
	LabelRestricted:    LabelRestricted,
	"low_context":      LabelNeedsMoreInfo,
	"clarify":          LabelNeedsMoreInfo,
	"response_action":  LabelReadyToAct,
	"restrict_action":  LabelRestricted,
	"not_implemented":  LabelRestricted,
	"unknown":          LabelInformational,
	"info":             LabelInformational,
}

// NormalizeLabel maps model output onto a canonical label. Anything
// unrecognised counts as ready_to_act when an action was named.
func NormalizeLabel(label, action string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	l = strings.ReplaceAll(strings.ReplaceAll(l, "-", "_"), " ", "_")
	if canon, ok := labelAliases[l]; ok {
		return canon
	}
	if strings.TrimSpace(action) != "" {
		return LabelReadyToAct
	}
	return LabelInformational
}

// Function describes one callable backend operation to the model.
type Function struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Parameters  any      `json:"parameters,omitempty"`
	Required    []string `json:"required,omitempty"`
}

// Pending is an intent still waiting on arguments from earlier turns.
type Pending struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args"`
}

type ClassifyInput struct {
	History   []Message
	Functions []Function
	Pending   *Pending
	Today     time.Time
}

type Classification struct {
	Label      string         `json:"label"`
	Action     string         `json:"action"`
	Args       map[string]any `json:"args"`
	Message    string         `json:"message,omitempty"`
	Confidence float32        `json:"confidence"`
}

// rawClassification also accepts the older "type" and "tool" keys for the action.
type rawClassification struct {
	Classification
	Type string `json:"type"`
	Tool string `json:"tool"`
}

type Classifier struct {
	completer Completer
	spec      *PromptSpec
}

func NewClassifier(c Completer, spec *PromptSpec) *Classifier {
	return &Classifier{completer: c, spec: spec}
}

// Classify embeds the whole transcript into one system message and asks the
// model for a single JSON object describing the latest user turn.
func (c *Classifier) Classify(ctx context.Context, in ClassifyInput) (*Classification, error) {
	today := in.Today
	if today.IsZero() {
		today = time.Now()
	}
	fns := make([]Function, 0, len(in.Functions))
	for _, f := range in.Functions {
		if d, ok := c.spec.Functions[f.Name]; ok && d != "" {
			f.Description = d
		}
		fns = append(fns, f)
	}
	schemaJSON, err := json.Marshal(fns)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(c.spec.Classifier.System))
	b.WriteString("\n\nToday is ")
	b.WriteString(today.Format("2006-01-02 (Monday)"))
	b.WriteString(".\n\nFunctions:\n")
	b.Write(schemaJSON)
	if in.Pending != nil && in.Pending.Action != "" {
		pj, _ := json.Marshal(in.Pending)
		b.WriteString("\n\nPending intent (arguments collected so far):\n")
		b.Write(pj)
	}
	b.WriteString("\n\nTranscript (role: content):\n")
	for _, m := range in.History {
		role := strings.ToUpper(m.Role)
		if role == "" {
			role = "USER"
		}
		content := strings.TrimSpace(m.Content)
		content = strings.ReplaceAll(content, "\n\n", "\n")
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(content)
		b.WriteString("\n")
	}
	b.WriteString("\nInstructions: ")
	b.WriteString(strings.TrimSpace(c.spec.Classifier.Instructions))
	b.WriteString("\n")

	raw, err := c.completer.Complete(ctx, Request{
		System:      b.String(),
		Messages:    []Message{{Role: RoleUser, Content: "Classify the latest USER turn. Output only the JSON object."}},
		Temperature: c.spec.temperature(),
		MaxTokens:   c.spec.maxTokens(),
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	return ParseClassification(raw)
}

// ParseClassification decodes model output and normalizes its label and action.
func ParseClassification(raw string) (*Classification, error) {
	var rc rawClassification
	if err := DecodeObject(raw, &rc); err != nil {
		return nil, fmt.Errorf("unparseable classifier output: %w", err)
	}
	out := rc.Classification
	if out.Action == "" {
		out.Action = rc.Type
	}
	if out.Action == "" {
		out.Action = rc.Tool
	}
	out.Action = strings.ToLower(strings.TrimSpace(out.Action))
	// Legacy outputs put the label in "type".
	if out.Label == "" && out.Action != "" {
		if _, isLabel := labelAliases[out.Action]; isLabel {
			out.Label, out.Action = out.Action, ""
		}
	}
	out.Label = NormalizeLabel(out.Label, out.Action)
	out.Message = strings.TrimSpace(out.Message)
	if out.Args == nil {
		out.Args = map[string]any{}
	}
	return &out, nil
}
