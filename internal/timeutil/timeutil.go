package timeutil

import (
	"time"
)

// Format renders t as RFC3339Nano in UTC, or "" for the zero
// time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Ptr returns a pointer to the formatted time, or nil for the
// zero time. JSON fields that should be omitted when unset use
// this.
func Ptr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := Format(t)
	return &s
}

// Hour extracts the hour from a clock string in H:MM:SS or
// HH:MM:SS form. Returns -1 when the string is malformed or
// the hour is out of range.
func Hour(clock string) int {
	h := 0
	digits := 0
	for _, c := range clock {
		if c == ':' {
			break
		}
		if c < '0' || c > '9' || digits == 2 {
			return -1
		}
		h = h*10 + int(c-'0')
		digits++
	}
	if digits == 0 || h > 23 {
		return -1
	}
	return h
}
