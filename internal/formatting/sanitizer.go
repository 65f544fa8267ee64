package formatting

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// HTMLSanitizer removes dangerous HTML elements and attributes from rendered replies.
//
// Thread-safe for concurrent use.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

// classValue restricts class attributes to utility-class characters
var classValue = regexp.MustCompile(`^[a-zA-Z0-9 _:\-\[\]#/.]+$`)

// NewHTMLSanitizer creates a sanitizer based on the UGC (User Generated Content)
// policy, keeping the class attributes the renderer emits.
func NewHTMLSanitizer() *HTMLSanitizer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(classValue).Globally()
	return &HTMLSanitizer{policy: policy}
}

// NewStrictHTMLSanitizer creates a sanitizer that strips all HTML.
// Used for plain-text previews such as chat titles.
func NewStrictHTMLSanitizer() *HTMLSanitizer {
	return &HTMLSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize removes scripts, event handlers and javascript: URLs while
// preserving headings, lists, emphasis, links and code blocks.
func (s *HTMLSanitizer) Sanitize(html string) (string, error) {
	return s.policy.Sanitize(html), nil
}
