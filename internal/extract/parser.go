package extract

import (
	"regexp"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

var dayHeaders = map[string]string{
	"monday": "monday", "mon": "monday",
	"tuesday": "tuesday", "tue": "tuesday", "tues": "tuesday",
	"wednesday": "wednesday", "wed": "wednesday",
	"thursday": "thursday", "thu": "thursday", "thur": "thursday", "thurs": "thursday",
	"friday": "friday", "fri": "friday",
	"saturday": "saturday", "sat": "saturday",
	"sunday": "sunday", "sun": "sunday",
}

// slotPattern matches lines like "09:00 - 10:00 Mathematics (Room 101)" or
// "9:00 AM Data Structures Lab".
var slotPattern = regexp.MustCompile(`(?i)^(\d{1,2}[:.]\d{2}(?:\s*(?:AM|PM))?(?:\s*[-–]\s*\d{1,2}[:.]\d{2}(?:\s*(?:AM|PM))?)?)\s+(.+)$`)

// roomPattern captures a trailing parenthesised room, e.g. "(Room 101)".
var roomPattern = regexp.MustCompile(`\(([^)]+)\)\s*$`)

// kindMarkers map subject suffixes to slot kinds.
var kindMarkers = []struct {
	marker string
	kind   string
}{
	{"lab", "practical"},
	{"practical", "practical"},
	{"tutorial", "tutorial"},
	{"lecture", "lecture"},
}

// ParseTimetable turns extracted timetable text into a weekly schedule.
// The expected layout is day headers followed by one slot per line; lines
// that match neither are ignored. An empty schedule is not an error, the
// caller decides whether to reject the upload.
func ParseTimetable(studentID, text string) *models.Timetable {
	timetable := &models.Timetable{
		StudentID: studentID,
		Schedule:  make(map[string][]models.Slot),
	}

	currentDay := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if day, ok := dayHeaders[normalizeHeader(line)]; ok {
			currentDay = day
			continue
		}
		if currentDay == "" {
			continue
		}
		if slot, ok := parseSlot(line); ok {
			timetable.Schedule[currentDay] = append(timetable.Schedule[currentDay], slot)
		}
	}
	return timetable
}

func normalizeHeader(line string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(line), ":- "))
}

func parseSlot(line string) (models.Slot, bool) {
	m := slotPattern.FindStringSubmatch(line)
	if m == nil {
		return models.Slot{}, false
	}
	slot := models.Slot{Time: strings.TrimSpace(m[1])}
	rest := strings.TrimSpace(m[2])

	if rm := roomPattern.FindStringSubmatch(rest); rm != nil {
		slot.Room = strings.TrimSpace(rm[1])
		rest = strings.TrimSpace(roomPattern.ReplaceAllString(rest, ""))
	}

	lower := strings.ToLower(rest)
	for _, km := range kindMarkers {
		if strings.HasSuffix(lower, km.marker) {
			slot.Kind = km.kind
			break
		}
	}

	slot.Subject = rest
	if slot.Subject == "" {
		return models.Slot{}, false
	}
	return slot, true
}
