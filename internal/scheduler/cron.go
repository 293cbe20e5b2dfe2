package scheduler

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CronSchedule is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
type CronSchedule struct {
	Minute     []int
	Hour       []int
	DayOfMonth []int
	Month      []int
	DayOfWeek  []int
}

// ParseCron validates and parses expr. Fields accept *, single values,
// ranges (1-5), lists (1,15) and steps (*/5, 0-30/10).
func ParseCron(expr string) (*CronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d", len(fields))
	}

	limits := []struct {
		name        string
		floor, ceil int
	}{
		{"minute", 0, 59},
		{"hour", 0, 23},
		{"day-of-month", 1, 31},
		{"month", 1, 12},
		{"day-of-week", 0, 6},
	}

	parsed := make([][]int, len(fields))
	for i, f := range fields {
		vals, err := parseField(f, limits[i].floor, limits[i].ceil)
		if err != nil {
			return nil, fmt.Errorf("cron: %s: %w", limits[i].name, err)
		}
		parsed[i] = vals
	}

	return &CronSchedule{
		Minute:     parsed[0],
		Hour:       parsed[1],
		DayOfMonth: parsed[2],
		Month:      parsed[3],
		DayOfWeek:  parsed[4],
	}, nil
}

// Next returns the next fire time strictly after from, or the zero time if
// none exists within four years.
func (s *CronSchedule) Next(from time.Time) time.Time {
	t := from.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(4, 0, 0)

	for t.Before(limit) {
		switch {
		case !slices.Contains(s.Month, int(t.Month())):
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
		case !slices.Contains(s.DayOfMonth, t.Day()) || !slices.Contains(s.DayOfWeek, int(t.Weekday())):
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
		case !slices.Contains(s.Hour, t.Hour()):
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
		case !slices.Contains(s.Minute, t.Minute()):
			t = t.Add(time.Minute)
		default:
			return t
		}
	}
	return time.Time{}
}

func parseField(field string, floor, ceil int) ([]int, error) {
	var result []int
	for part := range strings.SplitSeq(field, ",") {
		vals, err := parsePart(part, floor, ceil)
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			if !slices.Contains(result, v) {
				result = append(result, v)
			}
		}
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("empty field")
	}
	slices.Sort(result)
	return result, nil
}

func parsePart(part string, floor, ceil int) ([]int, error) {
	step := 0
	if base, stepStr, ok := strings.Cut(part, "/"); ok {
		s, err := strconv.Atoi(stepStr)
		if err != nil || s <= 0 {
			return nil, fmt.Errorf("invalid step %q", stepStr)
		}
		step = s
		part = base
	}

	var low, high int
	switch {
	case part == "*":
		low, high = floor, ceil
	case strings.Contains(part, "-"):
		lo, hi, _ := strings.Cut(part, "-")
		var err error
		if low, err = strconv.Atoi(lo); err != nil {
			return nil, fmt.Errorf("invalid range start %q", lo)
		}
		if high, err = strconv.Atoi(hi); err != nil {
			return nil, fmt.Errorf("invalid range end %q", hi)
		}
	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", part)
		}
		if step == 0 {
			if v < floor || v > ceil {
				return nil, fmt.Errorf("value %d out of range [%d, %d]", v, floor, ceil)
			}
			return []int{v}, nil
		}
		low, high = v, ceil
	}

	if low < floor || high > ceil || low > high {
		return nil, fmt.Errorf("range %d-%d out of bounds [%d, %d]", low, high, floor, ceil)
	}
	step = max(step, 1)

	var vals []int
	for i := low; i <= high; i += step {
		vals = append(vals, i)
	}
	return vals, nil
}
