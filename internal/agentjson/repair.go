// Package agentjson parses structured output coming back from language
// models. Model text is frequently wrapped in markdown fences or prose, so
// parsing is a pipeline: direct parse, then a balanced-brace repair pass.
// Callers that still fail fall back to a synthetic message of their own.
package agentjson

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status tags how a value was obtained from raw model output.
type Status int

const (
	// Parsed means the raw text unmarshalled as-is.
	Parsed Status = iota
	// Repaired means the outermost {...} span had to be extracted first.
	Repaired
)

// Result carries the parse outcome together with the JSON span that was
// actually decoded, so callers can log or persist it.
type Result struct {
	Status Status
	Raw    string
}

// Unmarshal decodes raw model output into v. It first strips markdown code
// fences, then tries a direct parse, then extracts the outermost balanced
// {...} span and retries. A nil error with Status == Repaired tells the
// caller the model added surrounding prose.
func Unmarshal(raw string, v interface{}) (Result, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return Result{}, fmt.Errorf("empty model output")
	}

	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return Result{Status: Parsed, Raw: cleaned}, nil
	}

	span := braceSpan(cleaned)
	if span == "" {
		return Result{}, fmt.Errorf("no JSON object found in model output")
	}
	if err := json.Unmarshal([]byte(span), v); err != nil {
		return Result{}, fmt.Errorf("repair parse failed: %w", err)
	}
	return Result{Status: Repaired, Raw: span}, nil
}

// stripFences removes a leading ```json / ``` fence pair if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// braceSpan returns the first balanced {...} span in s, or "" when none
// closes. Braces inside JSON strings are rare enough in model output that a
// depth counter is an acceptable approximation; a wrong span simply fails
// the re-parse and degrades to the caller's fallback.
func braceSpan(s string) string {
	start := -1
	depth := 0
	for i, ch := range s {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
