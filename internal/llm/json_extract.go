package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// taggedBlockPattern matches <json>...</json>, the delimiter the use-case
	// prompts ask for.
	taggedBlockPattern = regexp.MustCompile(`(?is)<json>\s*(.+?)\s*</json>`)

	// codeBlockPattern matches markdown code blocks with optional language tag
	// Captures: (1) optional language, (2) content
	codeBlockPattern = regexp.MustCompile(`(?s)` + "```" + `(\w*)\s*\n(.+?)\n?` + "```")
)

// ExtractJSON pulls one JSON object out of free model text.
// Priority:
//  1. a <json>...</json> block
//  2. a ```json (or untagged) fenced block
//  3. the first balanced {...} in the text
//
// Returns LLM_MALFORMED_RESPONSE when none of them holds valid JSON.
func ExtractJSON(response string) (string, error) {
	for _, m := range taggedBlockPattern.FindAllStringSubmatch(response, -1) {
		if candidate := strings.TrimSpace(m[1]); isValidJSON(candidate) {
			return candidate, nil
		}
	}

	if jsonStr, found := extractFromCodeBlock(response); found {
		return jsonStr, nil
	}

	if jsonStr, found := extractBalancedObject(response); found {
		return jsonStr, nil
	}

	return "", NewMalformedResponseError("no valid JSON object found in model response", nil)
}

// ExtractJSONAs extracts and unmarshals a JSON object into T.
func ExtractJSONAs[T any](response string) (T, error) {
	var out T
	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		return out, NewMalformedResponseError("model JSON does not match the expected shape", err)
	}
	return out, nil
}

// extractFromCodeBlock finds JSON in markdown code blocks.
func extractFromCodeBlock(response string) (string, bool) {
	for _, match := range codeBlockPattern.FindAllStringSubmatch(response, -1) {
		lang := strings.ToLower(match[1])
		content := strings.TrimSpace(match[2])

		// Skip blocks explicitly tagged as other languages
		if lang != "" && lang != "json" {
			continue
		}
		if strings.HasPrefix(content, "{") && isValidJSON(content) {
			return content, true
		}
	}
	return "", false
}

// extractBalancedObject scans each '{' in turn and returns the first
// balanced, valid object.
func extractBalancedObject(response string) (string, bool) {
	for offset := 0; offset < len(response); {
		idx := strings.IndexByte(response[offset:], '{')
		if idx < 0 {
			return "", false
		}
		start := offset + idx
		if candidate := matchBraces(response[start:]); candidate != "" && isValidJSON(candidate) {
			return candidate, true
		}
		offset = start + 1
	}
	return "", false
}

// matchBraces returns the prefix of s up to the brace closing s[0], ignoring
// braces inside strings.
func matchBraces(s string) string {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}

	return "" // Unmatched brackets
}

// isValidJSON checks if a string is a valid JSON object.
func isValidJSON(s string) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}
