package recurrence

import "time"

// maxPeriods bounds expansion of a single series.
const maxPeriods = 20000

type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Expand returns the occurrences of a series whose first instance spans
// [start, end) that overlap [from, to). Occurrences keep the wall-clock time
// of start in start's location, so a 9am event stays at 9am across DST.
// COUNT is counted from the first instance, not from from.
func Expand(r Rule, start, end, from, to time.Time) []Occurrence {
	if !to.After(from) {
		return nil
	}
	interval := max(r.Interval, 1)
	duration := end.Sub(start)

	var out []Occurrence
	n := 0
	for period := 0; period < maxPeriods; period++ {
		for _, s := range r.candidates(start, period*interval) {
			if s.Before(start) {
				continue
			}
			if !s.Before(to) || (r.Until != nil && s.After(*r.Until)) {
				return out
			}
			n++
			if r.Count > 0 && n > r.Count {
				return out
			}
			e := s.Add(duration)
			if !s.Before(from) || e.After(from) {
				out = append(out, Occurrence{Start: s, End: e})
			}
		}
	}
	return out
}

// candidates lists the instance starts in the period offset steps of the
// rule's frequency after start, in order. Months or years lacking the
// target day yield nothing.
func (r Rule) candidates(start time.Time, offset int) []time.Time {
	y, m, d := start.Date()
	hh, mm, ss := start.Clock()
	loc := start.Location()
	at := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, hh, mm, ss, 0, loc)
	}

	switch r.Freq {
	case Daily:
		return []time.Time{at(y, m, d+offset)}
	case Weekly:
		if len(r.ByDay) == 0 {
			return []time.Time{at(y, m, d+7*offset)}
		}
		monday := d - mondayOffset(start.Weekday()) + 7*offset
		out := make([]time.Time, len(r.ByDay))
		for i, wd := range r.ByDay {
			out[i] = at(y, m, monday+mondayOffset(wd))
		}
		return out
	case Monthly:
		day := d
		if r.ByMonthDay > 0 {
			day = r.ByMonthDay
		}
		first := time.Date(y, m+time.Month(offset), 1, 0, 0, 0, 0, loc)
		if day > daysIn(first.Year(), first.Month()) {
			return nil
		}
		return []time.Time{at(first.Year(), first.Month(), day)}
	case Yearly:
		if d > daysIn(y+offset, m) {
			return nil
		}
		return []time.Time{at(y+offset, m, d)}
	}
	return nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
