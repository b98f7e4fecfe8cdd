// Package normalize provides pure cleanup helpers for social handles and
// message text.
package normalize

import "strings"

// urlPrefixes lists the social-profile URL forms stripped from raw handles.
// Order matters: longer prefixes first so bare-domain forms do not shadow
// the https variants.
var urlPrefixes = []string{
	"https://www.x.com/",
	"https://www.twitter.com/",
	"https://x.com/",
	"https://twitter.com/",
	"http://www.x.com/",
	"http://www.twitter.com/",
	"http://x.com/",
	"http://twitter.com/",
	"x.com/",
	"twitter.com/",
}

// CleanHandle reduces a raw social handle to its bare username: strips a
// leading @, strips known profile URL prefixes, cuts status-URL suffixes at
// the first remaining slash, and trims whitespace. Unresolvable input yields
// the empty string; CleanHandle never fails.
func CleanHandle(raw string) string {
	h := strings.TrimSpace(raw)
	if h == "" {
		return ""
	}

	// Tweet URLs like "@user/status/123" keep only the username part.
	if i := strings.Index(h, "/status/"); i >= 0 {
		h = h[:i]
	}

	h = strings.ReplaceAll(h, "@", "")
	for _, p := range urlPrefixes {
		h = strings.ReplaceAll(h, p, "")
	}

	if i := strings.IndexByte(h, '/'); i >= 0 {
		h = h[:i]
	}

	return strings.TrimSpace(h)
}

// messageReserved is the MarkdownV2 reserved character set.
const messageReserved = "_*[]()~`>#+-=|{}.!"

// EscapeMessage backslash-escapes every MarkdownV2 reserved character.
// It is not idempotent: escaping already-escaped text double-escapes, so
// callers must escape exactly once.
func EscapeMessage(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 128 && strings.ContainsRune(messageReserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
