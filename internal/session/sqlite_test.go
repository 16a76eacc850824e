package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestProfileRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	profile := &models.Profile{StudentID: "s1", Name: "Asha", Program: "CSE", Semester: 3}
	if err := store.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	got, err := store.GetProfile(ctx, "s1")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.Name != "Asha" || got.Program != "CSE" || got.Semester != 3 {
		t.Errorf("unexpected profile %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestProfileUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.SaveProfile(ctx, &models.Profile{StudentID: "s1", Name: "Asha"})
	if err := store.SaveProfile(ctx, &models.Profile{StudentID: "s1", Name: "Asha K", Semester: 4}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, _ := store.GetProfile(ctx, "s1")
	if got.Name != "Asha K" || got.Semester != 4 {
		t.Errorf("upsert did not update fields: %+v", got)
	}

	profiles, err := store.ListProfiles(ctx)
	if err != nil || len(profiles) != 1 {
		t.Errorf("expected one profile, got %d err=%v", len(profiles), err)
	}
}

func TestProfileNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetProfile(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteProfile(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestTimetableRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.SaveProfile(ctx, &models.Profile{StudentID: "s1", Name: "Asha"})
	timetable := &models.Timetable{
		StudentID: "s1",
		Schedule: map[string][]models.Slot{
			"monday": {{Time: "09:00", Subject: "Math", Room: "101"}},
		},
	}
	if err := store.SaveTimetable(ctx, timetable); err != nil {
		t.Fatalf("SaveTimetable failed: %v", err)
	}

	got, err := store.GetTimetable(ctx, "s1")
	if err != nil {
		t.Fatalf("GetTimetable failed: %v", err)
	}
	if len(got.Schedule["monday"]) != 1 || got.Schedule["monday"][0].Subject != "Math" {
		t.Errorf("unexpected schedule %+v", got.Schedule)
	}

	profile, _ := store.GetProfile(ctx, "s1")
	if !profile.TimetableUploaded {
		t.Error("saving a timetable should flag the profile")
	}
}

func TestDeleteProfileRemovesTimetable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.SaveProfile(ctx, &models.Profile{StudentID: "s1", Name: "Asha"})
	_ = store.SaveTimetable(ctx, &models.Timetable{
		StudentID: "s1",
		Schedule:  map[string][]models.Slot{"monday": {{Time: "09:00", Subject: "Math"}}},
	})

	if err := store.DeleteProfile(ctx, "s1"); err != nil {
		t.Fatalf("DeleteProfile failed: %v", err)
	}
	if _, err := store.GetTimetable(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("timetable should be gone with the profile, got %v", err)
	}
}
