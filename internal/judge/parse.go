package judge

import (
	"encoding/json"
	"strings"
)

// ParseResult is the tagged outcome of parsing an LLM reply as JSON. It keeps
// "absent or corrupt" distinguishable from a normal empty value: callers check
// Ok() and can log the raw text when the reply was malformed.
type ParseResult[T any] struct {
	Value T
	Raw   string
	Err   error
}

// Ok reports whether the reply parsed cleanly.
func (r ParseResult[T]) Ok() bool {
	return r.Err == nil
}

// ParseJSON extracts the first JSON value embedded in raw and unmarshals it
// into T. Markdown code fences and surrounding prose are tolerated, since
// judges frequently wrap their JSON in both.
func ParseJSON[T any](raw string) ParseResult[T] {
	res := ParseResult[T]{Raw: raw}

	candidate := stripFences(strings.TrimSpace(raw))

	// Fast path: the whole reply is JSON.
	if err := json.Unmarshal([]byte(candidate), &res.Value); err == nil {
		return res
	}

	// Otherwise carve out the outermost object or array.
	if inner, ok := extractJSON(candidate); ok {
		if err := json.Unmarshal([]byte(inner), &res.Value); err == nil {
			return res
		} else {
			res.Err = err
			return res
		}
	}

	res.Err = errNoJSON
	return res
}

var errNoJSON = jsonNotFoundError{}

type jsonNotFoundError struct{}

func (jsonNotFoundError) Error() string { return "no JSON value found in reply" }

// stripFences removes a single Markdown code fence wrapper, with or without a
// language tag.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractJSON returns the substring between the first opening brace or bracket
// and its matching closer, tracking nesting and string literals.
func extractJSON(s string) (string, bool) {
	start := -1
	var open, closer byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				closer = '}'
			} else {
				closer = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
