// Package chore computes assignment status and schedules recurring chores
// through the household's rotation.
package chore

import (
	"slices"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
	StatusDueToday  Status = "due_today"
	StatusUpcoming  Status = "upcoming"
)

// ComputeStatus classifies an assignment relative to now. Day boundaries are
// taken in now's location, so callers pass now in the household timezone.
func ComputeStatus(a model.ChoreAssignment, now time.Time) Status {
	if a.CompletedAt != nil {
		return StatusCompleted
	}
	today := StartOfDay(now)
	due := StartOfDay(a.DueDate.In(now.Location()))
	switch {
	case due.Before(today):
		return StatusOverdue
	case due.Equal(today):
		return StatusDueToday
	default:
		return StatusUpcoming
	}
}

// Annotate sets Status on each assignment in place.
func Annotate(assignments []model.ChoreAssignment, now time.Time) {
	for i := range assignments {
		assignments[i].Status = string(ComputeStatus(assignments[i], now))
	}
}

// NextDue returns the due date following due for a chore of the given
// frequency. ONE_TIME chores have no next date. Monthly chores keep their day
// of month, clamped to the length of shorter months.
func NextDue(frequency string, due time.Time) (time.Time, bool) {
	switch frequency {
	case model.FrequencyDaily:
		return due.AddDate(0, 0, 1), true
	case model.FrequencyWeekly:
		return due.AddDate(0, 0, 7), true
	case model.FrequencyMonthly:
		year, month, day := due.Date()
		first := time.Date(year, month+1, 1, due.Hour(), due.Minute(), due.Second(), 0, due.Location())
		if last := daysInMonth(first.Year(), first.Month()); day > last {
			day = last
		}
		return first.AddDate(0, 0, day-1), true
	default:
		return time.Time{}, false
	}
}

// NextAssignee returns the member after current in rotation, wrapping around.
// An empty rotation keeps current; a current outside the rotation starts it.
func NextAssignee(rotation []int64, current int64) int64 {
	if len(rotation) == 0 {
		return current
	}
	i := slices.Index(rotation, current)
	return rotation[(i+1)%len(rotation)]
}

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
