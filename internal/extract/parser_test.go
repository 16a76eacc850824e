package extract

import "testing"

const sampleTimetable = `
Weekly Timetable - Semester 3

Monday
09:00 - 10:00 Mathematics (Room 101)
11:00 Data Structures Lab (Lab 2)

Tuesday:
10:00 - 11:30 Physics Lecture

Friday
`

func TestParseTimetable(t *testing.T) {
	timetable := ParseTimetable("s1", sampleTimetable)
	if timetable.StudentID != "s1" {
		t.Errorf("unexpected student ID %q", timetable.StudentID)
	}

	monday := timetable.Schedule["monday"]
	if len(monday) != 2 {
		t.Fatalf("expected 2 Monday slots, got %d", len(monday))
	}
	if monday[0].Time != "09:00 - 10:00" || monday[0].Subject != "Mathematics" || monday[0].Room != "Room 101" {
		t.Errorf("unexpected first slot %+v", monday[0])
	}
	if monday[1].Kind != "practical" {
		t.Errorf("lab slot should be kind practical, got %+v", monday[1])
	}

	tuesday := timetable.Schedule["tuesday"]
	if len(tuesday) != 1 || tuesday[0].Kind != "lecture" {
		t.Errorf("unexpected Tuesday slots %+v", tuesday)
	}

	if len(timetable.Schedule["friday"]) != 0 {
		t.Errorf("Friday should be empty, got %+v", timetable.Schedule["friday"])
	}
}

func TestParseTimetableAbbreviatedDays(t *testing.T) {
	timetable := ParseTimetable("s1", "Wed\n09:00 Chemistry\n")
	if len(timetable.Schedule["wednesday"]) != 1 {
		t.Errorf("abbreviated day header should map to wednesday, got %+v", timetable.Schedule)
	}
}

func TestParseTimetableIgnoresNoise(t *testing.T) {
	timetable := ParseTimetable("s1", "random header\nnot a slot line\n09:00 Orphan Subject\n")
	if len(timetable.Schedule) != 0 {
		t.Errorf("slots before any day header should be ignored, got %+v", timetable.Schedule)
	}
}

func TestPDFTextRejectsGarbage(t *testing.T) {
	if _, err := PDFText([]byte("not a pdf")); err == nil {
		t.Error("expected error for non-PDF input")
	}
}
