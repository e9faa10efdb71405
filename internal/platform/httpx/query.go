package httpx

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ParseDate accepts RFC3339 or a bare date. A bare date used as an upper
// bound covers the whole day. Empty input yields nil.
func ParseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", ErrValidation, raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// QueryInt64 reads a required positive integer parameter.
func QueryInt64(q url.Values, name string) (int64, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s required", ErrValidation, name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrValidation, name)
	}
	return v, nil
}

// QueryInt reads an optional integer parameter with a fallback.
func QueryInt(q url.Values, name string, fallback int) int {
	v, err := strconv.Atoi(q.Get(name))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
