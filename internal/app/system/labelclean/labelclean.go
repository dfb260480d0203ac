// Package labelclean turns backend-supplied labels (state names, month
// labels, score ranges) into plain display text.
//
// Labels come from another service and end up inside SVG text nodes and
// card headings, so any markup is stripped before the template layer sees
// them. html/template still escapes the result.
package labelclean

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// MaxLen is the longest label kept; longer labels are cut with an ellipsis.
const MaxLen = 48

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func strict() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Clean strips tags, decodes entities, collapses whitespace and caps length.
// An empty result becomes fallback.
func Clean(s, fallback string) string {
	out := strict().Sanitize(s)
	// StrictPolicy escapes what it keeps; templates escape again on output.
	out = html.UnescapeString(out)
	out = strings.Join(strings.Fields(out), " ")

	if out == "" {
		return fallback
	}
	if r := []rune(out); len(r) > MaxLen {
		out = string(r[:MaxLen-1]) + "…"
	}
	return out
}
