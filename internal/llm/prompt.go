package llm

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/intent.yaml
var defaultPrompt []byte

// PromptSpec holds the prompt text and sampling style for both model calls.
type PromptSpec struct {
	Classifier struct {
		System       string `yaml:"system"`
		Instructions string `yaml:"instructions"`
	} `yaml:"classifier"`
	Responder struct {
		System string `yaml:"system"`
	} `yaml:"responder"`
	// Functions overrides tool descriptions by name.
	Functions map[string]string `yaml:"functions"`
	Style     struct {
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
		Language    string  `yaml:"language"`
	} `yaml:"style"`
}

// LoadPromptSpec reads path over the embedded defaults. An empty path returns the defaults.
func LoadPromptSpec(path string) (*PromptSpec, error) {
	spec, err := ParsePromptSpec(nil)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return spec, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, spec); err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", path, err)
	}
	return spec, nil
}

// ParsePromptSpec decodes override on top of the embedded defaults.
func ParsePromptSpec(override []byte) (*PromptSpec, error) {
	var spec PromptSpec
	if err := yaml.Unmarshal(defaultPrompt, &spec); err != nil {
		return nil, fmt.Errorf("parse embedded prompt: %w", err)
	}
	if len(override) > 0 {
		if err := yaml.Unmarshal(override, &spec); err != nil {
			return nil, err
		}
	}
	return &spec, nil
}

func (s *PromptSpec) temperature() float32 {
	if s.Style.Temperature <= 0 {
		return 0.1
	}
	return s.Style.Temperature
}

func (s *PromptSpec) maxTokens() int {
	if s.Style.MaxTokens <= 0 {
		return 300
	}
	return s.Style.MaxTokens
}
