package llm

import (
	"encoding/json"
	"strings"
)

// DecodeObject unmarshals raw into out. Models often wrap the object in prose
// or code fences, so on failure the span from the first '{' to the last '}' is retried.
func DecodeObject(raw string, out any) error {
	err := json.Unmarshal([]byte(raw), out)
	if err == nil {
		return nil
	}
	first := strings.IndexByte(raw, '{')
	last := strings.LastIndexByte(raw, '}')
	if first < 0 || last <= first {
		return err
	}
	if err2 := json.Unmarshal([]byte(raw[first:last+1]), out); err2 != nil {
		return err
	}
	return nil
}
