// Package sanitize strips markdown links, bare URLs and citation markers
// from model-generated prose.
package sanitize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sozercan/recyclens/apimodels"
)

// Removal patterns, applied in order.
var removals = []*regexp.Regexp{
	regexp.MustCompile(`\(\s*\[[^\]]+\]\([^)]+\)\s*\)`), // ([label](url))
	regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`),           // [label](url)
	regexp.MustCompile(`<https?://[^>]+>`),
	regexp.MustCompile(`https?://[^\s)]+`),
	regexp.MustCompile(`(?i)\[\s*cite[^\]]*\]`),
	regexp.MustCompile(`\[\d+\]`),
}

var (
	emptyParens     = regexp.MustCompile(`\(\s*\)`)
	trailingSpace   = regexp.MustCompile(`[ \t]+\n`)
	manyNewlines    = regexp.MustCompile(`\n{3,}`)
	repeatedSpacing = regexp.MustCompile(`[ \t]{2,}`)
)

// Config names keys whose values are passed through untouched at any depth.
type Config struct {
	// KeepKeys hold structured data such as source URL lists.
	KeepKeys map[string]bool

	// KeepStringKeys hold single link values that must stay clickable.
	KeepStringKeys map[string]bool
}

var DefaultConfig = Config{
	KeepKeys:       map[string]bool{"ragSources": true, "webSearchSources": true},
	KeepStringKeys: map[string]bool{"url": true},
}

type Sanitizer struct {
	cfg Config
}

func New(cfg Config) *Sanitizer {
	return &Sanitizer{cfg: cfg}
}

var defaultSanitizer = New(DefaultConfig)

func (s *Sanitizer) exempt(key string) bool {
	return key != "" && (s.cfg.KeepKeys[key] || s.cfg.KeepStringKeys[key])
}

// Value walks a decoded JSON tree and returns a copy with every string
// sanitized, except values under exempt keys. key is the field name v was
// found under, or "" at the root and for array elements.
func (s *Sanitizer) Value(v any, key string) any {
	if v == nil || s.exempt(key) {
		return v
	}

	switch t := v.(type) {
	case string:
		return Text(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = s.Value(e, "")
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = s.Value(e, k)
		}
		return out
	default:
		// numbers, booleans
		return v
	}
}

// Response sanitizes every prose field of an analysis result.
func (s *Sanitizer) Response(r *apimodels.AnalyzeResponse) (*apimodels.AnalyzeResponse, error) {
	if r == nil {
		return nil, nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	cleaned, err := json.Marshal(s.Value(tree, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to encode sanitized response: %w", err)
	}
	var out apimodels.AnalyzeResponse
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return nil, fmt.Errorf("failed to decode sanitized response: %w", err)
	}
	return &out, nil
}

// Value sanitizes v with DefaultConfig.
func Value(v any) any {
	return defaultSanitizer.Value(v, "")
}

// Response sanitizes r with DefaultConfig.
func Response(r *apimodels.AnalyzeResponse) (*apimodels.AnalyzeResponse, error) {
	return defaultSanitizer.Response(r)
}

// Text removes links and citation markers from s and tidies whitespace.
// The pass repeats until nothing changes, so Text(Text(s)) == Text(s).
// Every pass that changes s makes it shorter, which bounds the loop.
func Text(s string) string {
	for {
		next := pass(s)
		if next == s {
			return s
		}
		s = next
	}
}

func pass(s string) string {
	if s == "" {
		return ""
	}
	for _, re := range removals {
		s = re.ReplaceAllString(s, "")
	}
	s = emptyParens.ReplaceAllString(s, "")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = manyNewlines.ReplaceAllString(s, "\n\n")
	s = repeatedSpacing.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
