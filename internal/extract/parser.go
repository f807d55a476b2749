package extract

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	errNoObject   = errors.New("no '{' in response")
	errUnbalanced = errors.New("unbalanced braces")
)

// ParseResponse pulls the first balanced JSON object out of raw model text,
// which may be wrapped in prose or code fences. Numbers decode as json.Number.
// The object is returned as decoded; no repair happens here.
func ParseResponse(raw string) (map[string]any, error) {
	span, err := objectSpan(raw)
	if err != nil {
		return nil, newMalformed("locate json object", raw, err)
	}

	dec := json.NewDecoder(strings.NewReader(span))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, newMalformed("decode json object", raw, err)
	}
	return out, nil
}

// objectSpan scans from the first '{' tracking brace depth, ignoring braces
// inside string literals, and returns the text up to the matching '}'.
func objectSpan(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", errNoObject
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(raw); i++ {
		c := raw[i]
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
				return raw[start : i+1], nil
			}
		}
	}
	return "", errUnbalanced
}
