package store

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/recurrence"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventSelect = `SELECT e.id, e.household_id, e.member_id, e.title, e.description, e.start_time, e.end_time,
	e.all_day, e.location, e.color, e.recurrence_rule, COALESCE(m.name, ''), COALESCE(m.color, ''), e.created_at, e.updated_at
	FROM calendar_events e LEFT JOIN members m ON m.id = e.member_id`

func scanEvent(s scanner) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	var memberID sql.NullInt64
	var description, location, color, rule sql.NullString
	var allDay int
	err := s.Scan(&e.ID, &e.HouseholdID, &memberID, &e.Title, &description, &e.StartTime, &e.EndTime,
		&allDay, &location, &color, &rule, &e.MemberName, &e.MemberColor, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.MemberID = int64Ptr(memberID)
	e.Description = description.String
	e.Location = location.String
	e.Color = color.String
	e.AllDay = allDay != 0
	e.RecurrenceRule = rule.String
	if e.RecurrenceRule != "" {
		if r, err := recurrence.Parse(e.RecurrenceRule); err == nil {
			e.Repeats = r.Describe()
		}
	}
	return &e, nil
}

func (s *EventStore) Create(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_events (household_id, member_id, title, description, start_time, end_time, all_day, location, color, recurrence_rule)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.HouseholdID, nullInt64(e.MemberID), e.Title, nullString(e.Description),
		e.StartTime.UTC(), e.EndTime.UTC(), boolInt(e.AllDay), nullString(e.Location), nullString(e.Color),
		nullString(e.RecurrenceRule),
	)
	if err != nil {
		return nil, fmt.Errorf("insert calendar event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, e.HouseholdID, id)
}

func (s *EventStore) Get(ctx context.Context, householdID, id int64) (*model.CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx, eventSelect+` WHERE e.id = ? AND e.household_id = ?`, id, householdID)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get calendar event: %w", err)
	}
	return e, nil
}

// EventFilter narrows List. Zero values mean no constraint.
type EventFilter struct {
	From  time.Time // events ending after From
	To    time.Time // events starting before To
	Limit int
}

// expansionHorizon bounds series expansion when a filter has no To.
const expansionHorizon = 366 * 24 * time.Hour

// List returns the household's events ordered all-day first, then by start.
// When From is set, recurring series are expanded into their occurrences
// inside the window, computed in From's location.
func (s *EventStore) List(ctx context.Context, householdID int64, f EventFilter) ([]model.CalendarEvent, error) {
	query := eventSelect + ` WHERE e.household_id = ?`
	args := []any{householdID}
	if !f.From.IsZero() {
		query += ` AND (e.end_time >= ? OR e.recurrence_rule IS NOT NULL)`
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		query += ` AND e.start_time < ?`
		args = append(args, f.To.UTC())
	}
	query += ` ORDER BY e.all_day DESC, e.start_time ASC, e.id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	defer rows.Close()

	events := []model.CalendarEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}

	if !f.From.IsZero() {
		events = expandSeries(events, f.From, f.To)
	}
	if f.Limit > 0 && len(events) > f.Limit {
		events = events[:f.Limit]
	}
	return events, nil
}

// expandSeries replaces each recurring event with its occurrences in
// [from, to) and re-sorts. Events with unparseable rules are kept as-is.
func expandSeries(events []model.CalendarEvent, from, to time.Time) []model.CalendarEvent {
	if to.IsZero() {
		to = from.Add(expansionHorizon)
	}
	loc := from.Location()

	out := make([]model.CalendarEvent, 0, len(events))
	expanded := false
	for _, e := range events {
		if e.RecurrenceRule == "" {
			out = append(out, e)
			continue
		}
		rule, err := recurrence.Parse(e.RecurrenceRule)
		if err != nil {
			out = append(out, e)
			continue
		}
		expanded = true
		first := e.StartTime
		for _, occ := range recurrence.Expand(rule, e.StartTime.In(loc), e.EndTime.In(loc), from, to) {
			o := e
			o.StartTime, o.EndTime = occ.Start.UTC(), occ.End.UTC()
			o.SeriesStart = &first
			out = append(out, o)
		}
	}
	if expanded {
		slices.SortStableFunc(out, func(a, b model.CalendarEvent) int {
			if a.AllDay != b.AllDay {
				if a.AllDay {
					return -1
				}
				return 1
			}
			return cmp.Compare(a.StartTime.UnixNano(), b.StartTime.UnixNano())
		})
	}
	return out
}

func (s *EventStore) Update(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE calendar_events SET title = ?, description = ?, start_time = ?, end_time = ?, all_day = ?,
		 location = ?, color = ?, recurrence_rule = ?, updated_at = ? WHERE id = ? AND household_id = ?`,
		e.Title, nullString(e.Description), e.StartTime.UTC(), e.EndTime.UTC(), boolInt(e.AllDay),
		nullString(e.Location), nullString(e.Color), nullString(e.RecurrenceRule), time.Now().UTC(), e.ID, e.HouseholdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update calendar event: %w", err)
	}
	return s.Get(ctx, e.HouseholdID, e.ID)
}

func (s *EventStore) Delete(ctx context.Context, householdID, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}
