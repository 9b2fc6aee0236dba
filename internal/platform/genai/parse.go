package genai

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformedOutput is returned when a model response cannot be parsed as
// JSON even after the repair pass.
var ErrMalformedOutput = errors.New("malformed generation output")

// Parse decodes a model response into a JSON object. It is an explicit
// two-attempt pipeline: first the raw text with fences stripped, then a
// structural repair pass. Both failing yields ErrMalformedOutput.
func Parse(raw string) (map[string]interface{}, error) {
	cleaned := StripFences(raw)

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
		return result, nil
	}

	repaired := Repair(cleaned)
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return nil, ErrMalformedOutput
	}
	return result, nil
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, which models routinely wrap JSON in.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

// Repair applies best-effort structural fixes to almost-JSON: trims leading
// and trailing prose around the outermost object, removes trailing commas,
// and closes unbalanced brackets. It never guarantees validity; the caller
// re-parses and decides.
func Repair(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	s = s[start:]

	// Trim prose after the last closing bracket.
	if end := strings.LastIndexAny(s, "}]"); end >= 0 {
		s = s[:end+1]
	}

	s = removeTrailingCommas(s)
	return closeBrackets(s)
}

func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}
		if ch == ',' {
			// Look ahead for a closing bracket with only whitespace between.
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func closeBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, ch)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			s += "}"
		} else {
			s += "]"
		}
	}
	return s
}
