package pipeline

import "strings"

// cleanModelJSON strips Markdown fences and surrounding chatter from a
// model response, keeping only the JSON payload. The service is told to
// return raw JSON, but models wrap output in ```json fences often enough
// that recovering here is cheaper than retrying.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the fence line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// If there is still junk around the payload, keep only the outermost
	// array or object.
	if trimmed, ok := between(s, '[', ']'); ok {
		// Prefer the object when it opens first, so the wrapped
		// {"transactions": [...]} shape survives.
		if obj, objOK := between(s, '{', '}'); objOK && strings.Index(s, "{") < strings.Index(s, "[") {
			return obj
		}
		return trimmed
	}
	if trimmed, ok := between(s, '{', '}'); ok {
		return trimmed
	}
	return s
}

func between(s string, opener, closer byte) (string, bool) {
	start := strings.IndexByte(s, opener)
	end := strings.LastIndexByte(s, closer)
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return strings.TrimSpace(s[start : end+1]), true
}
