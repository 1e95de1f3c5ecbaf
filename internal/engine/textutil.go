package engine

import (
	"regexp"
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"
	"golang.org/x/net/html"
)

// User-Agent strings used across HTTP clients.
const (
	UserAgentBot     = "go_vidqa/1.0"
	UserAgentChrome  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	UserAgentAndroid = "com.google.android.youtube/20.10.38 (Linux; U; Android 11) gzip"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Non-speech markers such as [Music] or [Applause].
	soundCueRe = regexp.MustCompile(`\[[^\]]{1,40}\]`)
)

// CleanCaptionText decodes entities, strips markup and sound cues, and
// collapses whitespace. Caption XML is frequently double-escaped.
func CleanCaptionText(s string) string {
	s = html.UnescapeString(html.UnescapeString(s))
	s = htmlTagRe.ReplaceAllString(s, "")
	s = soundCueRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Safe for UTF-8 (Devanagari, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// Preview shortens s for log attributes.
func Preview(s string) string {
	return TruncateRunes(s, 80, "...")
}
