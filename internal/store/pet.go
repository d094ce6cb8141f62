package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

type PetStore struct {
	db *sql.DB
}

func NewPetStore(db *sql.DB) *PetStore {
	return &PetStore{db: db}
}

// --- Pet methods ---

func scanPet(s scanner) (*model.Pet, error) {
	var p model.Pet
	var breed, photo, notes sql.NullString
	var birth sql.NullTime
	err := s.Scan(&p.ID, &p.HouseholdID, &p.Name, &p.Species, &breed, &birth, &photo, &notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Breed = breed.String
	p.BirthDate = timePtr(birth)
	p.PhotoURL = photo.String
	p.Notes = notes.String
	return &p, nil
}

const petCols = `id, household_id, name, species, breed, birth_date, photo_url, notes, created_at, updated_at`

func (s *PetStore) Create(ctx context.Context, p *model.Pet) (*model.Pet, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO pets (household_id, name, species, breed, birth_date, photo_url, notes) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.HouseholdID, p.Name, p.Species, nullString(p.Breed), nullTime(p.BirthDate), nullString(p.PhotoURL), nullString(p.Notes),
	)
	if err != nil {
		return nil, fmt.Errorf("insert pet: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, p.HouseholdID, id)
}

func (s *PetStore) Get(ctx context.Context, householdID, id int64) (*model.Pet, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+petCols+` FROM pets WHERE id = ? AND household_id = ?`, id, householdID)
	p, err := scanPet(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pet: %w", err)
	}
	return p, nil
}

func (s *PetStore) List(ctx context.Context, householdID int64) ([]model.Pet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+petCols+` FROM pets WHERE household_id = ? ORDER BY name ASC, id ASC`, householdID)
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}
	defer rows.Close()

	pets := []model.Pet{}
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pet: %w", err)
		}
		pets = append(pets, *p)
	}
	return pets, rows.Err()
}

func (s *PetStore) Update(ctx context.Context, p *model.Pet) (*model.Pet, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pets SET name = ?, species = ?, breed = ?, birth_date = ?, photo_url = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND household_id = ?`,
		p.Name, p.Species, nullString(p.Breed), nullTime(p.BirthDate), nullString(p.PhotoURL), nullString(p.Notes),
		time.Now().UTC(), p.ID, p.HouseholdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update pet: %w", err)
	}
	return s.Get(ctx, p.HouseholdID, p.ID)
}

func (s *PetStore) Delete(ctx context.Context, householdID, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pets WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete pet: %w", err)
	}
	return nil
}

// --- Care task methods ---

const taskSelect = `SELECT t.id, t.pet_id, t.type, t.title, t.interval_hours, p.name, t.created_at, t.updated_at,
	l.id, l.member_id, COALESCE(m.name, ''), l.completed_at, l.notes, l.duration_min
	FROM pet_care_tasks t
	JOIN pets p ON p.id = t.pet_id
	LEFT JOIN pet_care_logs l ON l.id = (
		SELECT id FROM pet_care_logs WHERE task_id = t.id ORDER BY completed_at DESC, id DESC LIMIT 1
	)
	LEFT JOIN members m ON m.id = l.member_id`

func scanTask(s scanner) (*model.PetCareTask, error) {
	var t model.PetCareTask
	var interval, logID, logMember, logDuration sql.NullInt64
	var logMemberName string
	var logAt sql.NullTime
	var logNotes sql.NullString
	err := s.Scan(&t.ID, &t.PetID, &t.Type, &t.Title, &interval, &t.PetName, &t.CreatedAt, &t.UpdatedAt,
		&logID, &logMember, &logMemberName, &logAt, &logNotes, &logDuration)
	if err != nil {
		return nil, err
	}
	t.IntervalHours = intPtr(interval)
	if logID.Valid {
		t.LastLog = &model.PetCareLog{
			ID:          logID.Int64,
			TaskID:      t.ID,
			MemberID:    int64Ptr(logMember),
			MemberName:  logMemberName,
			CompletedAt: logAt.Time,
			Notes:       logNotes.String,
			DurationMin: intPtr(logDuration),
		}
	}
	return &t, nil
}

func (s *PetStore) queryTasks(ctx context.Context, query string, args ...any) ([]model.PetCareTask, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list care tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.PetCareTask{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan care task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// CreateTask adds a care task. Callers verify the pet belongs to householdID.
func (s *PetStore) CreateTask(ctx context.Context, householdID int64, t *model.PetCareTask) (*model.PetCareTask, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO pet_care_tasks (pet_id, type, title, interval_hours) VALUES (?, ?, ?, ?)`,
		t.PetID, t.Type, t.Title, nullInt(t.IntervalHours),
	)
	if err != nil {
		return nil, fmt.Errorf("insert care task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetTask(ctx, householdID, id)
}

func (s *PetStore) GetTask(ctx context.Context, householdID, id int64) (*model.PetCareTask, error) {
	tasks, err := s.queryTasks(ctx, taskSelect+` WHERE t.id = ? AND p.household_id = ?`, id, householdID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

func (s *PetStore) ListTasks(ctx context.Context, householdID, petID int64) ([]model.PetCareTask, error) {
	return s.queryTasks(ctx, taskSelect+` WHERE t.pet_id = ? AND p.household_id = ? ORDER BY t.type ASC, t.title ASC`, petID, householdID)
}

// ListAllTasks returns every care task in the household with its latest log.
func (s *PetStore) ListAllTasks(ctx context.Context, householdID int64) ([]model.PetCareTask, error) {
	return s.queryTasks(ctx, taskSelect+` WHERE p.household_id = ? ORDER BY p.name ASC, t.type ASC, t.title ASC`, householdID)
}

func (s *PetStore) UpdateTask(ctx context.Context, householdID int64, t *model.PetCareTask) (*model.PetCareTask, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pet_care_tasks SET type = ?, title = ?, interval_hours = ?, updated_at = ?
		 WHERE id = ? AND pet_id IN (SELECT id FROM pets WHERE household_id = ?)`,
		t.Type, t.Title, nullInt(t.IntervalHours), time.Now().UTC(), t.ID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update care task: %w", err)
	}
	return s.GetTask(ctx, householdID, t.ID)
}

func (s *PetStore) DeleteTask(ctx context.Context, householdID, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pet_care_tasks WHERE id = ? AND pet_id IN (SELECT id FROM pets WHERE household_id = ?)`,
		id, householdID,
	)
	if err != nil {
		return fmt.Errorf("delete care task: %w", err)
	}
	return nil
}

// LogCare records a completed care task. Callers verify the task belongs to householdID.
func (s *PetStore) LogCare(ctx context.Context, l *model.PetCareLog) (*model.PetCareLog, error) {
	if l.CompletedAt.IsZero() {
		l.CompletedAt = time.Now()
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO pet_care_logs (task_id, member_id, completed_at, notes, duration_min) VALUES (?, ?, ?, ?, ?)`,
		l.TaskID, nullInt64(l.MemberID), l.CompletedAt.UTC(), nullString(l.Notes), nullInt(l.DurationMin),
	)
	if err != nil {
		return nil, fmt.Errorf("insert care log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	out := *l
	out.ID = id
	return &out, nil
}

// --- Health record methods ---

func scanHealthRecord(s scanner) (*model.PetHealthRecord, error) {
	var h model.PetHealthRecord
	var notes sql.NullString
	var next sql.NullTime
	err := s.Scan(&h.ID, &h.PetID, &h.Type, &h.Title, &h.Date, &notes, &next, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	h.Notes = notes.String
	h.NextDue = timePtr(next)
	return &h, nil
}

// CreateHealthRecord adds a record. Callers verify the pet belongs to the household.
func (s *PetStore) CreateHealthRecord(ctx context.Context, h *model.PetHealthRecord) (*model.PetHealthRecord, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO pet_health_records (pet_id, type, title, date, notes, next_due) VALUES (?, ?, ?, ?, ?, ?)`,
		h.PetID, h.Type, h.Title, h.Date.UTC(), nullString(h.Notes), nullTime(h.NextDue),
	)
	if err != nil {
		return nil, fmt.Errorf("insert health record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	out := *h
	out.ID = id
	out.CreatedAt = time.Now().UTC()
	return &out, nil
}

func (s *PetStore) ListHealthRecords(ctx context.Context, householdID, petID int64) ([]model.PetHealthRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT h.id, h.pet_id, h.type, h.title, h.date, h.notes, h.next_due, h.created_at
		 FROM pet_health_records h JOIN pets p ON p.id = h.pet_id
		 WHERE h.pet_id = ? AND p.household_id = ? ORDER BY h.date DESC, h.id DESC`,
		petID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list health records: %w", err)
	}
	defer rows.Close()

	records := []model.PetHealthRecord{}
	for rows.Next() {
		h, err := scanHealthRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan health record: %w", err)
		}
		records = append(records, *h)
	}
	return records, rows.Err()
}
