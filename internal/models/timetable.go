package models

import "time"

// Slot is a single timetable entry.
type Slot struct {
	Time    string `json:"time"`
	Subject string `json:"subject"`
	Room    string `json:"room,omitempty"`
	Kind    string `json:"kind,omitempty"` // lecture, practical, tutorial
}

// Timetable is a student's weekly schedule keyed by lower-case day name
// (monday..sunday).
type Timetable struct {
	StudentID string            `json:"student_id"`
	Schedule  map[string][]Slot `json:"schedule"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Profile is a student profile record.
type Profile struct {
	StudentID         string    `json:"student_id"`
	Name              string    `json:"name"`
	Program           string    `json:"program"`
	Semester          int       `json:"semester"`
	TimetableUploaded bool      `json:"timetable_uploaded"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
