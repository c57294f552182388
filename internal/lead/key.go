package lead

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Lead key prefixes, strongest first.
const (
	PrefixURL     = "url:"
	PrefixContact = "contact:"
	PrefixUnknown = "unknown:"
)

// Key derives the deduplication key for a row: the profile URL when
// present, otherwise name plus email or phone, otherwise the name alone.
func Key(r Row) string {
	if u := NormalizeProfileURL(r.Get(FieldProfileURL)); u != "" {
		return PrefixURL + u
	}
	first, last := r.Names()
	name := NormalizeName(first + " " + last)
	if email := r.Get(FieldEmail); ValidEmail(email) {
		return PrefixContact + name + "|" + strings.ToLower(email)
	}
	if phone, ok := NormalizePhone(r.Get(FieldPhone)); ok {
		return PrefixContact + name + "|" + phone
	}
	return PrefixUnknown + name
}

// IsStrongKey reports whether key can be trusted for dedup. Name-only keys
// collide across distinct people and never match as processed.
func IsStrongKey(key string) bool {
	return key != "" && !strings.HasPrefix(key, PrefixUnknown)
}

// NormalizeName folds diacritics, lowercases, and collapses whitespace.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		if r == '-' || r == '\'' {
			return -1
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// NormalizeProfileURL drops scheme, "www.", query, fragment, and trailing
// slashes so the same profile maps to one key.
func NormalizeProfileURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.Contains(raw, ".") {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(strings.ToLower(u.Path), "/")
	return host + path
}
