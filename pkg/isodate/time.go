package isodate

import (
	"bytes"
	"encoding/json"
	"time"
)

// Time is a time.Time that (de)serialises with the Canvas ISO-8601 profile.
//
// Decoding never fails on the value itself: null, "" and unparseable strings
// all decode to the zero Time, which callers treat as "field not present".
type Time struct {
	time.Time
}

// NewTime wraps t.
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

// Ptr returns the wrapped time or nil when unset.
func (t Time) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// String implements fmt.Stringer.
func (t Time) String() string {
	return Format(t.Time)
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(Format(t.Time))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}

	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}

	if parsed, err := Parse(s); err == nil {
		t.Time = parsed
	}
	return nil
}
