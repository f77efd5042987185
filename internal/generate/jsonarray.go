package generate

import (
	"bytes"
	"encoding/json"
)

// scanResult is the outcome of looking for a JSON array inside model output.
type scanResult struct {
	array     string // First balanced region holding a non-empty array of {"fields": {...}} objects
	malformed string // First balanced region, set when none qualified
}

// findJSONArray scans text for balanced [...] regions. Brackets inside JSON
// strings are ignored. Regions that are valid JSON but do not hold posts,
// such as the "[1]" in "Källa [1]" or an empty "[]", are skipped.
func findJSONArray(text string) scanResult {
	var res scanResult
	for start := 0; start < len(text); start++ {
		if text[start] != '[' {
			continue
		}
		end := balancedEnd(text, start)
		if end < 0 {
			continue
		}
		region := text[start : end+1]
		if isPostArray(region) {
			res.array = region
			return res
		}
		if res.malformed == "" {
			res.malformed = region
		}
	}
	return res
}

// isPostArray reports whether region is a non-empty JSON array whose every
// element is an object carrying a "fields" object.
func isPostArray(region string) bool {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(region), &items); err != nil || len(items) == 0 {
		return false
	}
	for _, item := range items {
		fields := bytes.TrimSpace(item["fields"])
		if len(fields) == 0 || fields[0] != '{' {
			return false
		}
	}
	return true
}

// balancedEnd returns the index of the bracket closing the one at start,
// or -1 when the region never closes.
func balancedEnd(text string, start int) int {
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
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
