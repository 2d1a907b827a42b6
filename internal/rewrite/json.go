package rewrite

import (
	"encoding/json"
	"log"
	"strings"
)

// rewriteResponse is the JSON object the model is asked to return.
type rewriteResponse struct {
	Summary string `json:"rewritten_summary"`
	Content string `json:"rewritten_content"`
}

// decodeRewriteResponse parses model output that may be raw JSON, JSON inside
// a fenced code block, or JSON buried in surrounding prose. Returns nil when
// nothing parseable is found; a parse failure must never propagate as a crash.
func decodeRewriteResponse(text string) *rewriteResponse {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	var r rewriteResponse
	if err := json.Unmarshal([]byte(text), &r); err == nil {
		return &r
	}

	// Last resort: the outermost brace pair.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &r); err == nil {
			return &r
		}
	}

	log.Printf("Failed to parse rewrite response as JSON")
	return nil
}

// stripControl removes ASCII control characters and trims the result.
func stripControl(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s))
}
