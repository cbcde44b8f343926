// Package llmjson extracts a JSON object from free-form LLM output.
//
// The rules are applied in order:
//  1. a single fenced block (```json ... ```) wrapping the whole reply is unwrapped;
//  2. reasoning blocks (<think>...</think>) are removed, and when a reasoning
//     marker was present the first balanced {...} span is taken;
//  3. the candidate is decoded; if that fails, the first balanced {...} span of
//     the candidate is decoded instead.
//
// Every failure is reported as a *ParseFailure.
package llmjson

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kart-io/medreport/pkg/utils/json"
)

// Step names the parse step that failed.
type Step string

const (
	StepEmpty   Step = "empty"
	StepExtract Step = "extract"
	StepDecode  Step = "decode"
)

// snippetLen bounds the raw text kept on a failure.
const snippetLen = 200

// ParseFailure is returned when no JSON object could be decoded.
type ParseFailure struct {
	Step    Step
	Snippet string
	Err     error
}

func (e *ParseFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llmjson: %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("llmjson: %s", e.Step)
}

func (e *ParseFailure) Unwrap() error {
	return e.Err
}

var (
	fenceRe  = regexp.MustCompile("^```(?:json|JSON)?\\s*([\\s\\S]*?)\\s*```$")
	thinkRe  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thinkTag = "<think>"
)

// StripFence unwraps a single fenced block that spans the whole text.
func StripFence(text string) string {
	text = strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// FirstObject returns the first balanced {...} span of text.
// Braces inside JSON strings are ignored.
func FirstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end, ok := matchBrace(text, start); ok {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// Extract returns the JSON object text carried by raw.
func Extract(raw string) (string, error) {
	text := StripFence(raw)
	if text == "" {
		return "", &ParseFailure{Step: StepEmpty}
	}

	if strings.Contains(text, thinkTag) {
		text = strings.TrimSpace(thinkRe.ReplaceAllString(text, ""))
		obj, ok := FirstObject(text)
		if !ok {
			return "", &ParseFailure{Step: StepExtract, Snippet: snippet(raw), Err: fmt.Errorf("no JSON object after reasoning block")}
		}
		return obj, nil
	}

	if json.Valid([]byte(text)) {
		return text, nil
	}
	obj, ok := FirstObject(text)
	if !ok {
		return "", &ParseFailure{Step: StepExtract, Snippet: snippet(raw), Err: fmt.Errorf("no JSON object found")}
	}
	return obj, nil
}

// Decode extracts the JSON object from raw and decodes it into v.
func Decode(raw string, v any) error {
	obj, err := Extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return &ParseFailure{Step: StepDecode, Snippet: snippet(obj), Err: err}
	}
	return nil
}

func snippet(s string) string {
	if len(s) <= snippetLen {
		return s
	}
	return s[:snippetLen]
}
