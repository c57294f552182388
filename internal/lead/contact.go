package lead

import (
	"strings"
	"unicode"
)

// MinPhoneDigits is the shortest digit string accepted as a usable phone.
const MinPhoneDigits = 10

// NormalizePhone strips formatting and a leading US country code. The
// second return is false when fewer than MinPhoneDigits digits remain.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) < MinPhoneDigits {
		return "", false
	}
	return digits, true
}

// ValidPhone reports whether raw normalizes to a usable phone.
func ValidPhone(raw string) bool {
	_, ok := NormalizePhone(raw)
	return ok
}

// ValidEmail reports whether raw looks like an address. Only the presence
// of "@" with text on both sides is checked.
func ValidEmail(raw string) bool {
	raw = strings.TrimSpace(raw)
	at := strings.Index(raw, "@")
	return at > 0 && at < len(raw)-1 && !strings.ContainsFunc(raw, unicode.IsSpace)
}

// BestPhone picks between a value already known and a freshly discovered
// one. A valid fresh value wins, then a valid existing value. A valid value
// is never replaced with an invalid or empty one.
func BestPhone(existing, fresh string) string {
	return best(strings.TrimSpace(existing), strings.TrimSpace(fresh), ValidPhone)
}

// BestEmail applies the BestPhone rule to email addresses.
func BestEmail(existing, fresh string) string {
	return best(strings.TrimSpace(existing), strings.TrimSpace(fresh), ValidEmail)
}

func best(existing, fresh string, valid func(string) bool) string {
	switch {
	case valid(fresh):
		return fresh
	case valid(existing):
		return existing
	case !IsPlaceholder(existing):
		return existing
	case !IsPlaceholder(fresh):
		return fresh
	}
	return existing
}

// SplitName returns the first and last tokens of a display name. Anything
// after a comma (credentials such as "MBA") is dropped.
func SplitName(full string) (first, last string) {
	if i := strings.Index(full, ","); i >= 0 {
		full = full[:i]
	}
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], parts[len(parts)-1]
}

// Names resolves first and last name from the row, splitting the full name
// column when the dedicated columns are absent.
func (r Row) Names() (first, last string) {
	first, last = r.Get(FieldFirstName), r.Get(FieldLastName)
	if first != "" && last != "" {
		return first, last
	}
	f, l := SplitName(r.Get(FieldFullName))
	if first == "" {
		first = f
	}
	if last == "" {
		last = l
	}
	return first, last
}

// CityState resolves city and state, falling back to a combined location
// column such as "Austin, TX" or "Austin, Texas, United States".
func (r Row) CityState() (city, state string) {
	city, state = r.Get(FieldCity), r.Get(FieldState)
	if city != "" && state != "" {
		return city, state
	}
	loc := r.Get(FieldLocation)
	if loc == "" {
		return city, state
	}
	parts := strings.Split(loc, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if n := len(parts); n > 1 && isCountry(parts[n-1]) {
		parts = parts[:n-1]
	}
	if city == "" && len(parts) >= 2 {
		city = parts[0]
	}
	if state == "" && len(parts) >= 2 {
		state = parts[1]
	}
	return city, state
}

func isCountry(s string) bool {
	switch strings.ToLower(s) {
	case "united states", "usa", "us", "united states of america":
		return true
	}
	return false
}
