// Package session persists student profiles and timetables and answers
// personal schedule questions from them.
package session

import (
	"context"
	"errors"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrNotFound is returned when a profile or timetable does not exist.
var ErrNotFound = errors.New("not found")

// Store persists student profiles and their timetables.
type Store interface {
	SaveProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, studentID string) (*models.Profile, error)
	DeleteProfile(ctx context.Context, studentID string) error
	ListProfiles(ctx context.Context) ([]*models.Profile, error)

	SaveTimetable(ctx context.Context, timetable *models.Timetable) error
	GetTimetable(ctx context.Context, studentID string) (*models.Timetable, error)

	Close() error
}
