// Package extract locates and parses JSON values embedded in free-form
// provider text. Providers are instructed to fence their JSON but routinely
// wrap it in prose, so extraction is best-effort and never an error: absence
// of valid JSON is an expected outcome the caller handles.
package extract

import (
	"encoding/json"
	"strings"
)

// JSON finds the first JSON value in text and returns it raw.
// Preference order: a fenced code block, then a brace-balanced scan from
// whichever of { or [ occurs first. Scanning in textual order matters: an
// array of objects must come back as the array, not its first element.
// Returns found=false when neither yields valid JSON.
func JSON(text string) (json.RawMessage, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	if fenced, ok := fencedBlock(text); ok {
		if raw, ok := parseValid(fenced); ok {
			return raw, true
		}
	}

	for _, open := range openerOrder(text) {
		if candidate, ok := balancedSlice(text, open); ok {
			if raw, ok := parseValid(candidate); ok {
				return raw, true
			}
		}
	}

	return nil, false
}

// Unmarshal extracts the first JSON value in text into v.
// Returns false when no valid JSON is found or it does not fit v.
func Unmarshal(text string, v any) bool {
	raw, ok := JSON(text)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// openerOrder returns { and [ ordered by their first occurrence in text,
// so the scan starts at the outermost value.
func openerOrder(text string) []byte {
	obj := strings.IndexByte(text, '{')
	arr := strings.IndexByte(text, '[')
	if arr >= 0 && (obj < 0 || arr < obj) {
		return []byte{'[', '{'}
	}
	return []byte{'{', '['}
}

// fencedBlock returns the contents of the first markdown code fence.
func fencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	// Skip the language tag up to the first newline.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// balancedSlice scans forward from the first occurrence of open, tracking
// nesting depth while respecting quoted strings and escape sequences, and
// returns the substring where depth returns to zero. A naive first-to-last
// or regex slice fails on nested objects and on close brackets inside
// string literals.
func balancedSlice(text string, open byte) (string, bool) {
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return "", false
	}

	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}

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
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// parseValid checks that s is a well-formed JSON document and returns it raw.
func parseValid(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}
