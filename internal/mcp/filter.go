package mcp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/jmespath/go-jmespath"
	"github.com/rs/zerolog/log"
)

// defaultContextLines is used when a regex filter does not say how much
// surrounding text to keep
const defaultContextLines = 5

// FilterResult is a trimmed response body plus a summary of what was cut
type FilterResult struct {
	Content string                 `json:"content"`
	Meta    map[string]interface{} `json:"_meta"`
}

// estimateTokens approximates token count using chars/4 heuristic
func estimateTokens(data string) int {
	return len(data) / 4
}

func sizeMeta(result, source string) map[string]interface{} {
	return map[string]interface{}{
		"tokens": map[string]interface{}{
			"returned": estimateTokens(result),
			"source":   estimateTokens(source),
		},
		"bytes": map[string]interface{}{
			"returned": len(result),
			"source":   len(source),
		},
	}
}

// filterRegex keeps every match of pattern with some context around it.
// Overlapping windows are merged.
func filterRegex(body, pattern string, contextLines int) (*FilterResult, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInvalidInput, "invalid regex pattern").
			WithContext("field", "regex")
	}

	// roughly 80 characters per line, never less than 100
	contextChars := max(contextLines*80, 100)

	matches := re.FindAllStringIndex(body, -1)
	meta := sizeMeta("", body)
	meta["filter"] = map[string]interface{}{
		"type":          "regex",
		"pattern":       pattern,
		"total_matches": len(matches),
	}
	if len(matches) == 0 {
		log.Debug().Str("pattern", pattern).Msg("regex filter matched nothing")
		return &FilterResult{Meta: meta}, nil
	}

	type window struct{ start, end int }
	var merged []window
	for _, m := range matches {
		w := window{start: max(0, m[0]-contextChars), end: min(len(body), m[1]+contextChars)}
		if n := len(merged); n > 0 && w.start <= merged[n-1].end {
			merged[n-1].end = max(merged[n-1].end, w.end)
			continue
		}
		merged = append(merged, w)
	}

	blocks := make([]string, 0, len(merged))
	for i, w := range merged {
		excerpt := body[w.start:w.end]
		if w.start > 0 {
			excerpt = "..." + excerpt
		}
		if w.end < len(body) {
			excerpt += "..."
		}
		blocks = append(blocks, fmt.Sprintf("=== Context Window %d (bytes %d-%d) ===\n%s", i+1, w.start, w.end, excerpt))
	}
	content := strings.Join(blocks, "\n\n")

	meta = sizeMeta(content, body)
	meta["filter"] = map[string]interface{}{
		"type":           "regex",
		"pattern":        pattern,
		"total_matches":  len(matches),
		"merged_windows": len(merged),
	}

	log.Debug().
		Int("matches", len(matches)).
		Int("windows", len(merged)).
		Int("result_bytes", len(content)).
		Int("input_bytes", len(body)).
		Msg("regex filter applied")

	return &FilterResult{Content: content, Meta: meta}, nil
}

// filterJMESPath evaluates expression against a JSON body
func filterJMESPath(body, expression string) (*FilterResult, error) {
	var data interface{}
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInvalidInput, "response content is not JSON").
			WithContext("field", "jmespath")
	}

	result, err := jmespath.Search(expression, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInvalidInput, "invalid jmespath expression").
			WithContext("field", "jmespath")
	}

	filtered, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode filtered result")
	}

	count := 0
	if arr, ok := result.([]interface{}); ok {
		count = len(arr)
	} else if result != nil {
		count = 1
	}

	content := string(filtered)
	meta := sizeMeta(content, body)
	meta["filter"] = map[string]interface{}{
		"type":         "jmespath",
		"expression":   expression,
		"result_count": count,
	}
	return &FilterResult{Content: content, Meta: meta}, nil
}
