// Package recurrence parses the RRULE subset used by repeating calendar
// events and expands a series into concrete occurrences.
package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRule wraps every Parse failure.
var ErrInvalidRule = errors.New("invalid recurrence rule")

type Freq string

const (
	Daily   Freq = "DAILY"
	Weekly  Freq = "WEEKLY"
	Monthly Freq = "MONTHLY"
	Yearly  Freq = "YEARLY"
)

var weekdayCodes = []string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// Rule is a parsed recurrence. ByDay is sorted Monday first and only applies
// to weekly rules; ByMonthDay only to monthly ones.
type Rule struct {
	Freq       Freq
	Interval   int
	ByDay      []time.Weekday
	ByMonthDay int
	Count      int
	Until      *time.Time
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRule, fmt.Sprintf(format, args...))
}

// mondayOffset is the weekday's distance from Monday.
func mondayOffset(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// Parse reads a rule such as "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE". A leading
// "RRULE:" is accepted and keys are case-insensitive.
func Parse(s string) (Rule, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "RRULE:")
	if s == "" {
		return Rule{}, invalid("empty rule")
	}

	r := Rule{Interval: 1}
	for _, part := range strings.Split(s, ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok || val == "" {
			return Rule{}, invalid("malformed part %q", part)
		}
		switch key {
		case "FREQ":
			switch f := Freq(val); f {
			case Daily, Weekly, Monthly, Yearly:
				r.Freq = f
			default:
				return Rule{}, invalid("unknown frequency %q", val)
			}
		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > 365 {
				return Rule{}, invalid("interval %q", val)
			}
			r.Interval = n
		case "BYDAY":
			for _, code := range strings.Split(val, ",") {
				i := slices.Index(weekdayCodes, strings.TrimSpace(code))
				if i < 0 {
					return Rule{}, invalid("unknown day %q", code)
				}
				if !slices.Contains(r.ByDay, time.Weekday(i)) {
					r.ByDay = append(r.ByDay, time.Weekday(i))
				}
			}
		case "BYMONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > 31 {
				return Rule{}, invalid("month day %q", val)
			}
			r.ByMonthDay = n
		case "COUNT":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, invalid("count %q", val)
			}
			r.Count = n
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", val)
			if err != nil {
				if t, err = time.Parse("20060102", val); err != nil {
					return Rule{}, invalid("until %q", val)
				}
				// A bare date includes the whole day.
				t = t.Add(24*time.Hour - time.Second)
			}
			r.Until = &t
		default:
			return Rule{}, invalid("unsupported key %q", key)
		}
	}

	if r.Freq == "" {
		return Rule{}, invalid("FREQ is required")
	}
	if r.Count > 0 && r.Until != nil {
		return Rule{}, invalid("COUNT and UNTIL are exclusive")
	}
	if len(r.ByDay) > 0 && r.Freq != Weekly {
		return Rule{}, invalid("BYDAY requires FREQ=WEEKLY")
	}
	if r.ByMonthDay > 0 && r.Freq != Monthly {
		return Rule{}, invalid("BYMONTHDAY requires FREQ=MONTHLY")
	}
	slices.SortFunc(r.ByDay, func(a, b time.Weekday) int { return mondayOffset(a) - mondayOffset(b) })
	return r, nil
}

// String returns the canonical form stored with an event.
func (r Rule) String() string {
	parts := []string{"FREQ=" + string(r.Freq)}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if len(r.ByDay) > 0 {
		codes := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			codes[i] = weekdayCodes[d]
		}
		parts = append(parts, "BYDAY="+strings.Join(codes, ","))
	}
	if r.ByMonthDay > 0 {
		parts = append(parts, "BYMONTHDAY="+strconv.Itoa(r.ByMonthDay))
	}
	if r.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count))
	}
	if r.Until != nil {
		parts = append(parts, "UNTIL="+r.Until.UTC().Format("20060102T150405Z"))
	}
	return strings.Join(parts, ";")
}

var units = map[Freq][2]string{
	Daily:   {"daily", "days"},
	Weekly:  {"weekly", "weeks"},
	Monthly: {"monthly", "months"},
	Yearly:  {"yearly", "years"},
}

// Describe renders the rule for display, e.g. "Every 2 weeks on Mon, Wed".
func (r Rule) Describe() string {
	u := units[r.Freq]
	s := "Repeats " + u[0]
	if r.Interval > 1 {
		s = fmt.Sprintf("Every %d %s", r.Interval, u[1])
	}
	if len(r.ByDay) > 0 {
		names := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			names[i] = d.String()[:3]
		}
		s += " on " + strings.Join(names, ", ")
	}
	if r.ByMonthDay > 0 {
		s += fmt.Sprintf(" on day %d", r.ByMonthDay)
	}
	switch {
	case r.Count == 1:
		s += ", once"
	case r.Count > 1:
		s += fmt.Sprintf(", %d times", r.Count)
	case r.Until != nil:
		s += ", until " + r.Until.Format("Jan 2, 2006")
	}
	return s
}
