package replicate

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
)

// Media extensions accepted as a rendered artifact, in preference order.
// Video formats are preferred over anything else the model emits alongside
// them (preview frames, thumbnails).
var artifactExtensions = []string{".mp4", ".webm", ".mov", ".m4v", ".gif"}

// Output fields commonly used by providers to carry the primary artifact.
var outputURLKeys = []string{"video", "url", "output"}

// extractArtifactURL pulls the artifact URL out of a provider output value.
// The output may be a bare string, a list of URLs, or an object with a
// well-known field. Among multiple candidates the first URL with a known
// media extension wins; a bare single URL is accepted as-is.
func extractArtifactURL(output json.RawMessage) (string, bool) {
	if len(output) == 0 {
		return "", false
	}

	var single string
	if err := json.Unmarshal(output, &single); err == nil {
		return pickArtifact([]string{single})
	}

	var list []string
	if err := json.Unmarshal(output, &list); err == nil {
		return pickArtifact(list)
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(output, &object); err == nil {
		for _, key := range outputURLKeys {
			raw, ok := object[key]
			if !ok {
				continue
			}
			if candidate, found := extractArtifactURL(raw); found {
				return candidate, true
			}
		}
	}

	return "", false
}

// pickArtifact returns the first candidate with a known media extension.
// A single candidate without a recognized extension is still accepted: some
// models serve artifacts from extension-less signed URLs.
func pickArtifact(candidates []string) (string, bool) {
	for _, candidate := range candidates {
		if hasArtifactExtension(candidate) {
			return candidate, true
		}
	}
	if len(candidates) == 1 && isHTTPURL(candidates[0]) {
		return candidates[0], true
	}
	return "", false
}

func hasArtifactExtension(rawURL string) bool {
	if !isHTTPURL(rawURL) {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	for _, known := range artifactExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

func isHTTPURL(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}
