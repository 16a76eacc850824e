package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not
// exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		student_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		program TEXT,
		semester INTEGER,
		timetable_uploaded INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS timetables (
		student_id TEXT PRIMARY KEY,
		schedule TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (student_id) REFERENCES profiles(student_id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveProfile inserts or updates a profile.
func (s *SQLiteStore) SaveProfile(ctx context.Context, profile *models.Profile) error {
	now := time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (student_id, name, program, semester, timetable_uploaded, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(student_id) DO UPDATE SET
		   name = excluded.name,
		   program = excluded.program,
		   semester = excluded.semester,
		   timetable_uploaded = excluded.timetable_uploaded,
		   updated_at = excluded.updated_at`,
		profile.StudentID, profile.Name, profile.Program, profile.Semester,
		boolToInt(profile.TimetableUploaded), profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// GetProfile returns the profile for studentID.
func (s *SQLiteStore) GetProfile(ctx context.Context, studentID string) (*models.Profile, error) {
	var profile models.Profile
	var uploaded int
	err := s.db.QueryRowContext(ctx,
		`SELECT student_id, name, program, semester, timetable_uploaded, created_at, updated_at
		 FROM profiles WHERE student_id = ?`, studentID,
	).Scan(&profile.StudentID, &profile.Name, &profile.Program, &profile.Semester,
		&uploaded, &profile.CreatedAt, &profile.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	profile.TimetableUploaded = uploaded != 0
	return &profile, nil
}

// DeleteProfile removes the profile and its timetable.
func (s *SQLiteStore) DeleteProfile(ctx context.Context, studentID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE student_id = ?`, studentID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	// Cascades need the pragma; delete explicitly instead.
	_, _ = s.db.ExecContext(ctx, `DELETE FROM timetables WHERE student_id = ?`, studentID)
	return nil
}

// ListProfiles returns all profiles ordered by student ID.
func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id, name, program, semester, timetable_uploaded, created_at, updated_at
		 FROM profiles ORDER BY student_id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		var profile models.Profile
		var uploaded int
		if err := rows.Scan(&profile.StudentID, &profile.Name, &profile.Program, &profile.Semester,
			&uploaded, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
			return nil, err
		}
		profile.TimetableUploaded = uploaded != 0
		profiles = append(profiles, &profile)
	}
	return profiles, rows.Err()
}

// SaveTimetable inserts or replaces the timetable for a student and marks
// the profile as having one.
func (s *SQLiteStore) SaveTimetable(ctx context.Context, timetable *models.Timetable) error {
	scheduleJSON, err := json.Marshal(timetable.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	timetable.UpdatedAt = time.Now()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO timetables (student_id, schedule, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(student_id) DO UPDATE SET
		   schedule = excluded.schedule,
		   updated_at = excluded.updated_at`,
		timetable.StudentID, string(scheduleJSON), timetable.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save timetable: %w", err)
	}
	_, _ = s.db.ExecContext(ctx,
		`UPDATE profiles SET timetable_uploaded = 1, updated_at = ? WHERE student_id = ?`,
		timetable.UpdatedAt, timetable.StudentID)
	return nil
}

// GetTimetable returns the timetable for studentID.
func (s *SQLiteStore) GetTimetable(ctx context.Context, studentID string) (*models.Timetable, error) {
	var timetable models.Timetable
	var scheduleJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT student_id, schedule, updated_at FROM timetables WHERE student_id = ?`, studentID,
	).Scan(&timetable.StudentID, &scheduleJSON, &timetable.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get timetable: %w", err)
	}
	if err := json.Unmarshal([]byte(scheduleJSON), &timetable.Schedule); err != nil {
		return nil, fmt.Errorf("unmarshal schedule: %w", err)
	}
	return &timetable, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
