// Package timeparse converts the free-form timestamps found in Arena logs
// into time.Time values. The client writes timestamps in whatever format the
// player's locale dictates, so parsing tries a fixed list of known layouts.
package timeparse

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrUnsupportedFormat is returned when a timestamp matches none of the
// known layouts.
var ErrUnsupportedFormat = errors.New("unsupported time format")

// Layouts observed across client versions and locales, tried in order.
// 12-hour variants require the AM/PM suffix so they don't swallow 24-hour
// strings.
var layouts = []string{
	"2006-01-02 3:04:05 PM",
	"2006-01-02 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
	"2006/1/2 3:04:05 PM",
	"2006/1/2 15:04:05",
	"2/1/2006 15:04:05",
	"2/1/2006 3:04:05 PM",
	"2.1.2006 15:04:05",
	"2.1.2006 3:04:05 PM",
	"2006-01-02T15:04:05",
	"2006-01-02T3:04:05 PM",
}

var trailingJunk = regexp.MustCompile(`[: /]*$`)

// Parse interprets a raw timestamp string from a log line. Trailing
// punctuation is stripped and anything after a ": " separator is ignored
// (some lines append extra context after the timestamp).
func Parse(raw string) (time.Time, error) {
	s := trailingJunk.ReplaceAllString(raw, "")
	if idx := strings.Index(s, ": "); idx >= 0 {
		s = s[:idx]
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// maxMillisSinceEpoch is the millisecond count of 3000-01-01 UTC. Numeric
// timestamps below it are milliseconds since the Unix epoch; above it they
// are .NET ticks (100ns intervals since year 1), the client's native
// representation.
var maxMillisSinceEpoch = time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// Seconds from the .NET epoch (0001-01-01) to the Unix epoch.
const dotnetToUnixSeconds = 62135596800

// DeriveUTC extracts a UTC instant from a payload's embedded timestamp
// field, checking the top level, then payloadObject, then
// params.payloadObject. Returns false when no timestamp field exists.
func DeriveUTC(payload map[string]any) (time.Time, bool) {
	raw, ok := findTimestamp(payload)
	if !ok {
		return time.Time{}, false
	}

	if v, ok := asInt64(raw); ok {
		if v < maxMillisSinceEpoch {
			return time.UnixMilli(v).UTC(), true
		}
		// .NET ticks. Split seconds from the 100ns remainder so the
		// conversion to nanoseconds cannot overflow int64.
		secs := v/10_000_000 - dotnetToUnixSeconds
		rem := v % 10_000_000
		return time.Unix(secs, rem*100).UTC(), true
	}

	if s, ok := raw.(string); ok {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999999"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func findTimestamp(payload map[string]any) (any, bool) {
	if v, ok := payload["timestamp"]; ok {
		return v, true
	}
	if obj, ok := payload["payloadObject"].(map[string]any); ok {
		if v, ok := obj["timestamp"]; ok {
			return v, true
		}
	}
	if params, ok := payload["params"].(map[string]any); ok {
		if obj, ok := params["payloadObject"].(map[string]any); ok {
			if v, ok := obj["timestamp"]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// asInt64 handles the value types a timestamp field shows up as: a
// json.Number (decoders using UseNumber), a float64 (plain decoding), or a
// string of digits.
func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case string:
		var n json.Number = json.Number(v)
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}
