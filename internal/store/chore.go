package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

// --- Chore methods ---

func scanChore(s scanner) (*model.Chore, error) {
	var c model.Chore
	var description sql.NullString
	var rotation string
	err := s.Scan(&c.ID, &c.HouseholdID, &c.Title, &description, &c.Frequency, &c.Points, &rotation, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Description = description.String
	c.RotationOrder = []int64{}
	if rotation != "" {
		if err := json.Unmarshal([]byte(rotation), &c.RotationOrder); err != nil {
			return nil, fmt.Errorf("decode rotation order: %w", err)
		}
	}
	return &c, nil
}

const choreCols = `id, household_id, title, description, frequency, points, rotation_order, created_at, updated_at`

func encodeIDs(ids []int64) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

func (s *ChoreStore) Create(ctx context.Context, c *model.Chore) (*model.Chore, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chores (household_id, title, description, frequency, points, rotation_order) VALUES (?, ?, ?, ?, ?, ?)`,
		c.HouseholdID, c.Title, nullString(c.Description), c.Frequency, c.Points, encodeIDs(c.RotationOrder),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, c.HouseholdID, id)
}

func (s *ChoreStore) Get(ctx context.Context, householdID, id int64) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ? AND household_id = ?`, id, householdID)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

func (s *ChoreStore) List(ctx context.Context, householdID int64) ([]model.Chore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+choreCols+` FROM chores WHERE household_id = ? ORDER BY title ASC, id ASC`, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	chores := []model.Chore{}
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *ChoreStore) Update(ctx context.Context, c *model.Chore) (*model.Chore, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chores SET title = ?, description = ?, frequency = ?, points = ?, rotation_order = ?, updated_at = ?
		 WHERE id = ? AND household_id = ?`,
		c.Title, nullString(c.Description), c.Frequency, c.Points, encodeIDs(c.RotationOrder), time.Now().UTC(),
		c.ID, c.HouseholdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.Get(ctx, c.HouseholdID, c.ID)
}

func (s *ChoreStore) Delete(ctx context.Context, householdID, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chores WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}

// --- Assignment methods ---

const assignmentSelect = `SELECT a.id, a.chore_id, a.member_id, a.due_date, a.completed, a.completed_at, a.completed_by_id,
	c.title, c.points, m.name, m.color, a.created_at
	FROM chore_assignments a
	JOIN chores c ON c.id = a.chore_id
	JOIN members m ON m.id = a.member_id`

func scanAssignment(s scanner) (*model.ChoreAssignment, error) {
	var a model.ChoreAssignment
	var completed int
	var completedAt sql.NullTime
	var completedBy sql.NullInt64
	err := s.Scan(&a.ID, &a.ChoreID, &a.MemberID, &a.DueDate, &completed, &completedAt, &completedBy,
		&a.ChoreTitle, &a.ChorePoints, &a.MemberName, &a.MemberColor, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Completed = completed != 0
	a.CompletedAt = timePtr(completedAt)
	a.CompletedByID = int64Ptr(completedBy)
	return &a, nil
}

// CreateAssignment attaches a chore to a member. Callers verify both belong to the household.
func (s *ChoreStore) CreateAssignment(ctx context.Context, householdID, choreID, memberID int64, due time.Time) (*model.ChoreAssignment, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_assignments (chore_id, member_id, due_date) VALUES (?, ?, ?)`,
		choreID, memberID, due.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetAssignment(ctx, householdID, id)
}

func (s *ChoreStore) GetAssignment(ctx context.Context, householdID, id int64) (*model.ChoreAssignment, error) {
	row := s.db.QueryRowContext(ctx, assignmentSelect+` WHERE a.id = ? AND c.household_id = ?`, id, householdID)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// AssignmentFilter narrows ListAssignments. Zero values mean no constraint.
type AssignmentFilter struct {
	MemberID    int64
	DueFrom     time.Time
	DueTo       time.Time
	PendingOnly bool
}

func (s *ChoreStore) ListAssignments(ctx context.Context, householdID int64, f AssignmentFilter) ([]model.ChoreAssignment, error) {
	query := assignmentSelect + ` WHERE c.household_id = ?`
	args := []any{householdID}
	if f.MemberID != 0 {
		query += ` AND a.member_id = ?`
		args = append(args, f.MemberID)
	}
	if !f.DueFrom.IsZero() {
		query += ` AND a.due_date >= ?`
		args = append(args, f.DueFrom.UTC())
	}
	if !f.DueTo.IsZero() {
		query += ` AND a.due_date < ?`
		args = append(args, f.DueTo.UTC())
	}
	if f.PendingOnly {
		query += ` AND a.completed = 0`
	}
	query += ` ORDER BY a.due_date ASC, a.id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	assignments := []model.ChoreAssignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// ErrAlreadyCompleted is returned when an assignment was completed first by
// another request.
var ErrAlreadyCompleted = errors.New("assignment already completed")

// NextAssignment is the follow-up assignment created with a completion.
type NextAssignment struct {
	MemberID int64
	Due      time.Time
}

// CompleteAssignment marks an assignment done by completedBy and, when next is
// non-nil, creates the follow-up assignment in the same transaction. done is
// nil when the assignment does not exist in the household. Only one caller
// can complete an assignment; the others get ErrAlreadyCompleted.
func (s *ChoreStore) CompleteAssignment(ctx context.Context, householdID, id, completedBy int64, at time.Time, next *NextAssignment) (done, created *model.ChoreAssignment, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE chore_assignments SET completed = 1, completed_at = ?, completed_by_id = ?
		 WHERE id = ? AND completed = 0 AND chore_id IN (SELECT id FROM chores WHERE household_id = ?)`,
		at.UTC(), completedBy, id, householdID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("complete assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("rows affected: %w", err)
	}

	var choreID int64
	err = tx.QueryRowContext(ctx,
		`SELECT a.chore_id FROM chore_assignments a JOIN chores c ON c.id = a.chore_id
		 WHERE a.id = ? AND c.household_id = ?`, id, householdID,
	).Scan(&choreID)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get assignment chore: %w", err)
	}
	if n == 0 {
		return nil, nil, ErrAlreadyCompleted
	}

	var nextID int64
	if next != nil {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO chore_assignments (chore_id, member_id, due_date) VALUES (?, ?, ?)`,
			choreID, next.MemberID, next.Due.UTC(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("insert next assignment: %w", err)
		}
		if nextID, err = result.LastInsertId(); err != nil {
			return nil, nil, fmt.Errorf("last insert id: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit completion: %w", err)
	}

	if done, err = s.GetAssignment(ctx, householdID, id); err != nil {
		return nil, nil, err
	}
	if nextID != 0 {
		if created, err = s.GetAssignment(ctx, householdID, nextID); err != nil {
			return nil, nil, err
		}
	}
	return done, created, nil
}
