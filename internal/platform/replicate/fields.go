package replicate

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// providerError is the error body shape most predictions APIs return.
type providerError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// errorDetail extracts a human-readable message from a provider error body.
func errorDetail(body []byte) string {
	var parsed providerError
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Title != "" {
			return parsed.Title
		}
	}
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	return trimmed
}

// Patterns seen in provider validation messages, e.g.
// `input.image is required`, `invalid field 'duration'`, `missing "prompt"`.
var fieldPatterns = []*regexp.Regexp{
	regexp.MustCompile(`input\.([A-Za-z0-9_]+)`),
	regexp.MustCompile(`['"]([A-Za-z0-9_]+)['"] (?:is )?(?:required|missing|invalid)`),
	regexp.MustCompile(`(?:missing|invalid|unknown) (?:field|input|property) ['"]?([A-Za-z0-9_]+)['"]?`),
}

// scrapeInvalidFields scans a validation error body for input field names.
// This is heuristic text-scraping of a body the provider does not guarantee
// the shape of: an empty result means "unspecified validation failure" and
// must never be treated as the absence of an error.
func scrapeInvalidFields(body []byte) []string {
	text := errorDetail(body)
	if text == "" {
		return nil
	}

	seen := make(map[string]struct{})
	for _, pattern := range fieldPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			seen[match[1]] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil
	}

	fields := make([]string, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
