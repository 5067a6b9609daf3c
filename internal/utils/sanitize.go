package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// SanitizeHTML keeps the formatting markup safe for user generated content.
func SanitizeHTML(s string) string {
	return strings.TrimSpace(ugcPolicy.Sanitize(s))
}

// StripTags removes all markup, e.g. for visitor comments.
func StripTags(s string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}
