// Package secretsafe masks secrets in strings, maps, and HTTP headers before
// they reach a log line or an error message.
package secretsafe

import (
	"regexp"
	"strings"
)

type pattern struct {
	re          *regexp.Regexp
	replacement string
}

// patterns runs in order; more specific vendor formats are listed before the
// generic key/token/password/secret fallbacks so a vendor key never gets
// double-masked by a looser rule downstream.
var patterns = []pattern{
	{regexp.MustCompile(`(?i)sk-[a-zA-Z0-9]{20,}`), "sk-***MASKED***"},
	{regexp.MustCompile(`(?i)r8_[a-zA-Z0-9]{20,}`), "r8_***MASKED***"},
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "AKIA***MASKED***"},
	{regexp.MustCompile(`(?i)AIza[0-9A-Za-z_-]{35}`), "AIza***MASKED***"},
	{regexp.MustCompile(`(?i)(bearer\s+)([a-zA-Z0-9_.-]{20,})`), "${1}***MASKED***"},
	{regexp.MustCompile(`(?i)(api[_-]?key[_-]?=?["']?)([a-zA-Z0-9_-]{20,})`), "${1}***MASKED***"},
	{regexp.MustCompile(`(?i)(token[_-]?=?["']?)([a-zA-Z0-9_.-]{20,})`), "${1}***MASKED***"},
	{regexp.MustCompile(`(?i)(password[_-]?=?["']?)([^\s"']{8,})`), "${1}***MASKED***"},
	{regexp.MustCompile(`(?i)(secret[_-]?=?["']?)([^\s"']{8,})`), "${1}***MASKED***"},
	{regexp.MustCompile(`(?i)(key[_-]?=?["']?)([a-zA-Z0-9_.-]{16,})`), "${1}***MASKED***"},
}

// sensitiveHeaders are masked wholesale regardless of their value shape.
var sensitiveHeaders = map[string]struct{}{
	"authorization":   {},
	"x-api-key":       {},
	"x-auth-token":    {},
	"cookie":          {},
	"set-cookie":      {},
	"x-access-token":  {},
	"bearer":          {},
}

// Masker masks secret-shaped substrings out of strings, nested data, and headers.
type Masker struct {
	patterns []pattern
}

// New returns a Masker seeded with the built-in vendor and generic patterns,
// plus any caller-supplied additions appended after them.
func New(extra ...pattern) *Masker {
	m := &Masker{patterns: make([]pattern, len(patterns))}
	copy(m.patterns, patterns)
	m.patterns = append(m.patterns, extra...)
	return m
}

// Default is shared by callers that don't need custom patterns.
var Default = New()

// MaskString replaces every secret-shaped substring of s with a masked marker.
func (m *Masker) MaskString(s string) string {
	out := s
	for _, p := range m.patterns {
		out = p.re.ReplaceAllString(out, p.replacement)
	}
	return out
}

// MaskAny masks strings recursively inside maps and slices; other types pass through.
func (m *Masker) MaskAny(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return m.MaskString(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = m.MaskAny(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = m.MaskAny(val)
		}
		return out
	default:
		return v
	}
}

// MaskHeaders masks header values, masking known sensitive headers outright
// and running the generic patterns over the rest.
func (m *Masker) MaskHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, sensitive := sensitiveHeaders[strings.ToLower(k)]; sensitive {
			out[k] = "***MASKED***"
		} else {
			out[k] = m.MaskString(v)
		}
	}
	return out
}
