// Package timerange resolves user supplied window bounds into
// concrete half-open UTC intervals.
package timerange

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultWindowHours is used when neither explicit bounds nor a configured default is given.
const DefaultWindowHours = 24

// TimeRange is an immutable [Start, End) interval in UTC.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies inside the range. A nil time is treated as
// unknown and is always contained.
func (r TimeRange) Contains(t *time.Time) bool {
	if t == nil {
		return true
	}
	return !t.Before(r.Start) && t.Before(r.End)
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r TimeRange) String() string {
	return r.Start.Format(time.RFC3339) + " - " + r.End.Format(time.RFC3339)
}

// Bounds describes a window before resolution. Start and End accept absolute
// timestamps, dates, "now" or relative phrases such as "3 days ago". Hours is
// a rolling window ending at End (or now).
type Bounds struct {
	Start string
	End   string
	Hours int
}

// IsZero reports whether no bound was set.
func (b Bounds) IsZero() bool {
	return strings.TrimSpace(b.Start) == "" && strings.TrimSpace(b.End) == "" && b.Hours == 0
}

// InvalidRangeError is returned when bounds cannot be parsed or does not
// yield start < end.
type InvalidRangeError struct {
	Input  string
	Reason string
	Err    error
}

func (e *InvalidRangeError) Error() string {
	msg := "invalid time range"
	if e.Input != "" {
		msg += fmt.Sprintf(" %q", e.Input)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidRangeError) Unwrap() error { return e.Err }

// Resolver turns Bounds into ranges. The zero value uses time.Now and a
// 24 hour default window.
type Resolver struct {
	Now          func() time.Time
	DefaultHours int
}

// NewResolver returns a Resolver with the given default window.
func NewResolver(defaultHours int) *Resolver {
	return &Resolver{Now: time.Now, DefaultHours: defaultHours}
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

func (r *Resolver) defaultHours() int {
	if r.DefaultHours <= 0 {
		return DefaultWindowHours
	}
	return r.DefaultHours
}

// Resolve converts bounds into a TimeRange.
func (r *Resolver) Resolve(bounds Bounds) (TimeRange, error) {
	now := r.now()

	if bounds.Hours < 0 {
		return TimeRange{}, &InvalidRangeError{
			Input:  strconv.Itoa(bounds.Hours),
			Reason: "hour window must be positive",
		}
	}

	end := now
	if s := strings.TrimSpace(bounds.End); s != "" {
		t, err := parsePoint(s, now)
		if err != nil {
			return TimeRange{}, err
		}
		end = t
	}

	var start time.Time
	switch {
	case strings.TrimSpace(bounds.Start) != "":
		t, err := parsePoint(strings.TrimSpace(bounds.Start), now)
		if err != nil {
			return TimeRange{}, err
		}
		start = t
	default:
		hours := bounds.Hours
		if hours == 0 {
			hours = r.defaultHours()
		}
		d, err := span(hours, time.Hour, strconv.Itoa(hours)+"h")
		if err != nil {
			return TimeRange{}, err
		}
		start = end.Add(-d)
	}

	if !start.Before(end) {
		return TimeRange{}, &InvalidRangeError{
			Input:  bounds.Start + ".." + bounds.End,
			Reason: fmt.Sprintf("start %s is not before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339)),
		}
	}

	return TimeRange{Start: start, End: end}, nil
}

// ParsePoint parses a single endpoint using the same formats as Resolve.
func (r *Resolver) ParsePoint(s string) (time.Time, error) {
	return parsePoint(strings.TrimSpace(s), r.now())
}

var absoluteLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
}

var relativePattern = regexp.MustCompile(`^(\d+)\s*([a-z]+)?\s+ago$|^(\d+)\s*([a-z]+)\s*ago$`)

// parsePoint parses one endpoint of a range. Naive timestamps are UTC.
func parsePoint(s string, now time.Time) (time.Time, error) {
	lower := strings.ToLower(s)
	if lower == "now" {
		return now, nil
	}

	if m := relativePattern.FindStringSubmatch(lower); m != nil {
		num, unit := m[1], m[2]
		if num == "" {
			num, unit = m[3], m[4]
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return time.Time{}, &InvalidRangeError{Input: s, Reason: "bad count", Err: err}
		}
		d, ok := unitDuration(unit)
		if !ok {
			return time.Time{}, &InvalidRangeError{Input: s, Reason: fmt.Sprintf("unknown unit %q", unit)}
		}
		back, err := span(n, d, s)
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(-back), nil
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &InvalidRangeError{Input: s, Reason: "unrecognized time format"}
}

// span returns n units of d, rejecting counts that overflow a Duration.
func span(n int, d time.Duration, input string) (time.Duration, error) {
	if int64(n) > math.MaxInt64/int64(d) {
		return 0, &InvalidRangeError{Input: input, Reason: "window too large"}
	}
	return time.Duration(n) * d, nil
}

func unitDuration(unit string) (time.Duration, bool) {
	switch unit {
	case "", "h", "hr", "hrs", "hour", "hours":
		return time.Hour, true
	case "m", "min", "mins", "minute", "minutes":
		return time.Minute, true
	case "d", "day", "days":
		return 24 * time.Hour, true
	case "w", "week", "weeks":
		return 7 * 24 * time.Hour, true
	}
	return 0, false
}
