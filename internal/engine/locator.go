package engine

import "regexp"

// videoIDRe matches an 11-char YouTube id after "v=" or a path separator.
var videoIDRe = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)

// ResolveVideoID extracts the video id from watch, short-link, shorts and embed URLs.
// Trailing query parameters and path segments are ignored.
func ResolveVideoID(rawURL string) (string, error) {
	m := videoIDRe.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return "", ErrInvalidLocator
	}
	return m[1], nil
}
