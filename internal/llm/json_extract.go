package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseError indicates that no JSON could be extracted from a response. The
// original raw text is preserved for diagnostics and ends up in the run's
// error record.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no JSON found in LLM response: %q", truncate(e.Raw, 200))
}

var (
	jsonFenceRe = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	anyFenceRe  = regexp.MustCompile("(?s)```(?:[a-zA-Z]*\\n)?(.*?)```")
)

// ExtractJSON pulls a JSON value out of raw LLM response text. Providers are
// told to emit bare JSON, but in practice responses arrive wrapped in
// markdown fences or surrounded by prose, so four strategies are tried in
// order:
//
//  1. parse the whole trimmed text;
//  2. parse the contents of a ```json fenced block;
//  3. parse the contents of any fenced block;
//  4. parse the substring from the first '{' or '[' to the last matching
//     closing bracket of the same type.
//
// If all four fail, a *ParseError carrying the original text is returned.
func ExtractJSON(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) && trimmed != "" {
		return json.RawMessage(trimmed), nil
	}

	if m := jsonFenceRe.FindStringSubmatch(raw); m != nil {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	if m := anyFenceRe.FindStringSubmatch(raw); m != nil {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	if candidate, ok := bracketSlice(trimmed); ok {
		return json.RawMessage(candidate), nil
	}

	return nil, &ParseError{Raw: raw}
}

// bracketSlice finds the first opening bracket and the last closing bracket
// of the same type, and validates the substring between them.
func bracketSlice(s string) (string, bool) {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	start, closing := objStart, byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start, closing = arrStart, ']'
	}
	if start == -1 {
		return "", false
	}

	end := strings.LastIndexByte(s, closing)
	if end <= start {
		return "", false
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
