// Package dates parses server timestamp representations into instants.
package dates

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var ErrEmptyInstant = errors.New("empty timestamp")

// ParseInstant converts a server timestamp into a UTC instant. Accepts
// RFC 3339 strings and integer unix seconds; the service has sent both.
func ParseInstant(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, ErrEmptyInstant
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
