package planner

import (
	"errors"
	"strings"
)

// extractJSONObject returns the first balanced {...} object in s, unwrapping
// a leading Markdown code fence if present and ignoring braces inside string
// literals.
func extractJSONObject(s string) (string, error) {
	s = strings.TrimSpace(s)
	if inner, ok := stripCodeFence(s); ok {
		s = strings.TrimSpace(inner)
	}

	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		if out, ok := balancedObjectAt(s, i); ok {
			return out, nil
		}
	}
	return "", errors.New("no balanced JSON object found")
}

// stripCodeFence unwraps a response that starts with a ``` or ~~~ fence,
// tolerating an optional language tag on the opening line.
func stripCodeFence(s string) (string, bool) {
	trim := strings.TrimLeft(s, "\n\r\t ")
	fence := ""
	switch {
	case strings.HasPrefix(trim, "```"):
		fence = "```"
	case strings.HasPrefix(trim, "~~~"):
		fence = "~~~"
	default:
		return "", false
	}

	rest := trim[len(fence):]
	nl := strings.IndexByte(rest, '\n')
	if nl == -1 {
		return "", false
	}
	rest = rest[nl+1:]
	if end := strings.Index(rest, fence); end != -1 {
		return rest[:end], true
	}
	return "", false
}

// balancedObjectAt extracts the object opening at start, tracking nesting of
// braces and brackets and skipping string contents with escape handling.
func balancedObjectAt(s string, start int) (string, bool) {
	if start >= len(s) || s[start] != '{' {
		return "", false
	}

	var (
		stack    = []byte{'{'}
		inString bool
		escape   bool
	)
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			top := stack[len(stack)-1]
			if (top == '{' && c != '}') || (top == '[' && c != ']') {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
