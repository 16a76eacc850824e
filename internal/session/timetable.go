package session

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// personalMarkers flag a question as being about the student's own
// schedule rather than general campus knowledge.
var personalMarkers = []string{
	"my class", "my classes", "my schedule", "my timetable", "my lecture",
	"my subjects", "my next class", "do i have class", "when is my",
	"what classes do i have", "classes today", "classes tomorrow",
	"schedule today", "schedule tomorrow", "timetable for",
}

var weekDays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// IsPersonalQuery reports whether query asks about the student's own
// timetable.
func IsPersonalQuery(query string) bool {
	q := strings.ToLower(query)
	for _, marker := range personalMarkers {
		if strings.Contains(q, marker) {
			return true
		}
	}
	return false
}

// AnswerFromTimetable answers a personal schedule question directly from
// the stored timetable. The day comes from an explicit weekday in the
// query, or "today"/"tomorrow" resolved against now. When the query names
// a subject, its occurrences across the week are listed instead.
func AnswerFromTimetable(timetable *models.Timetable, query string, now time.Time) string {
	if timetable == nil || len(timetable.Schedule) == 0 {
		return "I don't have your timetable yet. Upload it from your profile and ask again."
	}

	q := strings.ToLower(query)

	if subject := matchSubject(timetable, q); subject != "" {
		return subjectAnswer(timetable, subject)
	}

	day := dayFromQuery(q, now)
	slots := timetable.Schedule[day]
	if len(slots) == 0 {
		return fmt.Sprintf("You have no classes scheduled for %s.", titleCase(day))
	}
	return dayAnswer(day, slots)
}

// dayFromQuery picks the weekday the question refers to. Defaults to today.
func dayFromQuery(q string, now time.Time) string {
	for _, day := range weekDays {
		if strings.Contains(q, day) {
			return day
		}
	}
	if strings.Contains(q, "tomorrow") {
		return strings.ToLower(now.AddDate(0, 0, 1).Weekday().String())
	}
	return strings.ToLower(now.Weekday().String())
}

// matchSubject returns the timetable subject the query mentions, if any.
func matchSubject(timetable *models.Timetable, q string) string {
	for _, slots := range timetable.Schedule {
		for _, slot := range slots {
			subject := strings.ToLower(strings.TrimSpace(slot.Subject))
			if subject != "" && strings.Contains(q, subject) {
				return slot.Subject
			}
		}
	}
	return ""
}

func subjectAnswer(timetable *models.Timetable, subject string) string {
	var lines []string
	for _, day := range weekDays {
		for _, slot := range timetable.Schedule[day] {
			if !strings.EqualFold(slot.Subject, subject) {
				continue
			}
			lines = append(lines, fmt.Sprintf("- %s %s%s", titleCase(day), slot.Time, slotSuffix(slot)))
		}
	}
	if len(lines) == 0 {
		return fmt.Sprintf("I couldn't find %s in your timetable.", subject)
	}
	sort.Strings(lines)
	return fmt.Sprintf("Your %s sessions this week:\n%s", subject, strings.Join(lines, "\n"))
}

func dayAnswer(day string, slots []models.Slot) string {
	lines := make([]string, 0, len(slots))
	for _, slot := range slots {
		lines = append(lines, fmt.Sprintf("- %s %s%s", slot.Time, slot.Subject, slotSuffix(slot)))
	}
	return fmt.Sprintf("Your schedule for %s:\n%s", titleCase(day), strings.Join(lines, "\n"))
}

func slotSuffix(slot models.Slot) string {
	switch {
	case slot.Room != "" && slot.Kind != "":
		return fmt.Sprintf(" (%s, %s)", slot.Room, slot.Kind)
	case slot.Room != "":
		return fmt.Sprintf(" (%s)", slot.Room)
	case slot.Kind != "":
		return fmt.Sprintf(" (%s)", slot.Kind)
	}
	return ""
}

func titleCase(day string) string {
	if day == "" {
		return day
	}
	return strings.ToUpper(day[:1]) + day[1:]
}
