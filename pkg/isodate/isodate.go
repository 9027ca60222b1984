// Package isodate formats and parses the ISO-8601 timestamps used by the
// Canvas API, e.g. "2008-03-01T13:00:00+01:00" or "2008-03-01T13:00:00Z".
//
// Only the canonical profile is accepted: four-digit year, two-digit fields,
// whole seconds and either "Z" or a "±HH:MM" offset. Anything else is
// reported as ErrMalformedTimestamp.
package isodate

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the wire format. Formatting always writes a numeric offset.
const Layout = "2006-01-02T15:04:05-07:00"

// parseLayout additionally accepts a trailing "Z" for UTC.
const parseLayout = "2006-01-02T15:04:05Z07:00"

const (
	lenUTC    = len("2006-01-02T15:04:05Z")
	lenOffset = len("2006-01-02T15:04:05+00:00")
)

// ErrMalformedTimestamp is returned for input outside the accepted profile.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// Format renders t as "yyyy-MM-ddTHH:mm:ss±HH:MM" in t's own location.
// The zero time is treated as absent and yields "".
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(Layout)
}

// FormatPtr is Format for optional values. A nil or zero time gives nil.
func FormatPtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := Format(*t)
	return &s
}

// Parse reads a canonical ISO-8601 timestamp. The result carries the
// input's offset as a fixed zone.
func Parse(s string) (time.Time, error) {
	if !canonicalShape(s) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}

	t, err := time.Parse(parseLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrMalformedTimestamp, s, err)
	}
	return t, nil
}

// MustParse is Parse for constants in tests and examples. It panics on error.
func MustParse(s string) time.Time {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// canonicalShape checks length and separators before handing off to
// time.Parse, which would otherwise accept fractional seconds and
// single-digit hours.
func canonicalShape(s string) bool {
	switch len(s) {
	case lenUTC:
		if s[19] != 'Z' {
			return false
		}
	case lenOffset:
		if (s[19] != '+' && s[19] != '-') || s[22] != ':' {
			return false
		}
		if !digits(s[20:22]) || !digits(s[23:25]) {
			return false
		}
	default:
		return false
	}

	return digits(s[0:4]) && s[4] == '-' &&
		digits(s[5:7]) && s[7] == '-' &&
		digits(s[8:10]) && s[10] == 'T' &&
		digits(s[11:13]) && s[13] == ':' &&
		digits(s[14:16]) && s[16] == ':' &&
		digits(s[17:19])
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
