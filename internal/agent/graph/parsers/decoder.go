package parsers

import (
	"encoding/json"
	"regexp"
	"strings"

	logx "github.com/dataspeak-agent/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200        // limit error snippet size
)

var (
	fenceRe        = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	lineCommentRe  = regexp.MustCompile(`(?m)\s//[^\n]*$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// Decode recovers a structured value from loosely formatted LLM output.
// Recovery tiers, tried in order:
//
//	a) strip code-fence markers and parse the substring between the first
//	   '{' and the last '}' verbatim
//	b) retry after normalizing single quotes to double quotes
//	c) retry after stripping line and block comments
//
// When every tier fails the caller-supplied fallback is returned unchanged.
// Decode is total: it never panics and never returns an error. The boolean
// reports whether the content (rather than the fallback) produced the value.
func Decode[T any](content string, fallback T) (out T, recovered bool) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "decoder").Msgf("panic recovered: %v", r)
			out = fallback
			recovered = false
		}
	}()

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "decoder").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}

	candidate := extractObject(content)
	if candidate == "" {
		logx.Debug().Str("component", "decoder").Str("snippet", safeSnippet(content)).
			Msg("no JSON object found, returning fallback")
		return fallback, false
	}

	tiers := []func(string) string{
		func(s string) string { return s },
		normalizeQuotes,
		func(s string) string { return stripComments(normalizeQuotes(s)) },
	}

	for i, tier := range tiers {
		var v T
		if err := json.Unmarshal([]byte(tier(candidate)), &v); err == nil {
			if i > 0 {
				logx.Debug().Str("component", "decoder").Int("tier", i).
					Msg("recovered object on relaxed tier")
			}
			return v, true
		}
	}

	logx.Warn().Str("component", "decoder").Str("snippet", safeSnippet(candidate)).
		Msg("all recovery tiers failed, returning fallback")
	return fallback, false
}

// extractObject strips markdown fences and slices the first balanced-looking
// object span. The slice is verbatim: nested braces are covered because the
// last '}' closes the outermost object in well-formed output.
func extractObject(content string) string {
	content = fenceRe.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

func normalizeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", `"`)
}

func stripComments(s string) string {
	s = blockCommentRe.ReplaceAllString(s, "")
	return lineCommentRe.ReplaceAllString(s, "")
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
