package layout

import (
	"html"
	"regexp"
	"strings"
)

var (
	reBreak     = regexp.MustCompile(`(?i)<br\s*/?>`)
	reBlockEnd  = regexp.MustCompile(`(?i)</(?:p|div)\s*>`)
	reListOpen  = regexp.MustCompile(`(?i)<li(?:\s[^>]*)?>`)
	reListClose = regexp.MustCompile(`(?i)</li\s*>`)
	reTag       = regexp.MustCompile(`<[^>]*>`)
	reBlankRun  = regexp.MustCompile(`\n\s*\n`)
	reMarkup    = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
)

// HTMLToText derives a plain-text approximation of an HTML fragment.
// Line breaks and paragraph or div closes become newlines, list items get a
// bullet prefix, other tags are dropped and blank-line runs collapse to one.
// Applying it to its own output returns that output unchanged.
func HTMLToText(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = reBreak.ReplaceAllString(s, "\n")
	s = reBlockEnd.ReplaceAllString(s, "\n")
	s = reListOpen.ReplaceAllString(s, "• ")
	s = reListClose.ReplaceAllString(s, "\n")
	s = reTag.ReplaceAllString(s, "")
	s = reBlankRun.ReplaceAllString(s, "\n")

	return strings.TrimSpace(s)
}

// EscapeHTML escapes the characters that are significant in HTML markup.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

// TextToHTML escapes text and keeps its line breaks visible.
func TextToHTML(text string) string {
	escaped := EscapeHTML(strings.ReplaceAll(text, "\r\n", "\n"))
	return `<div class="text-content">` + strings.ReplaceAll(escaped, "\n", "<br>") + `</div>`
}

// LooksLikeHTML reports whether s contains at least one markup tag.
func LooksLikeHTML(s string) bool {
	return reMarkup.MatchString(s)
}
