package recordperm

import (
	"strings"
	"time"

	"github.com/oarkflow/date"
)

const dayLayout = "2006-01-02"

var timeOfDayLayouts = []string{"15:04:05", "15:04", "15.04", "3:04 PM", "3:04PM"}

// WithinHours reports whether now is at most hoursLimit hours after
// recordInstant. A record dated in the future always passes.
func WithinHours(recordInstant, now time.Time, hoursLimit float64) bool {
	return now.Sub(recordInstant).Hours() <= hoursLimit
}

// IsSameCalendarDay reports whether the calendar day written in recordDate is
// today in loc. The record side is truncated naively to YYYY-MM-DD; a date
// that cannot be read is never the same day.
func IsSameCalendarDay(recordDate string, now time.Time, loc *time.Location) bool {
	day, ok := recordDay(recordDate)
	if !ok {
		return false
	}
	return day == now.In(locationOrLocal(loc)).Format(dayLayout)
}

// IsOwner reports whether userID created the record. An empty creator owns nothing.
func IsOwner(createdBy, userID string) bool {
	return createdBy != "" && createdBy == userID
}

// RoleAllowed reports whether role is a member of allowed.
func RoleAllowed(role string, allowed []string) bool {
	if role == "" {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// StatusEditable reports whether status still permits editing. An absent
// status is always editable. With no explicit set, DefaultEditableStatuses applies.
func StatusEditable(status string, editable ...string) bool {
	status = strings.TrimSpace(status)
	if status == "" {
		return true
	}
	if len(editable) == 0 {
		editable = DefaultEditableStatuses
	}
	for _, s := range editable {
		if strings.EqualFold(s, status) {
			return true
		}
	}
	return false
}

// RecordInstant builds the instant the time-window rule measures from. The
// second result is false when the record carries no readable date or time.
func RecordInstant(rec *Record, g Granularity, loc *time.Location) (time.Time, bool) {
	if rec == nil {
		return time.Time{}, false
	}
	loc = locationOrLocal(loc)
	raw := strings.TrimSpace(rec.RecordDate)
	day, ok := recordDay(raw)
	if !ok {
		return time.Time{}, false
	}
	midnight, err := time.ParseInLocation(dayLayout, day, loc)
	if err != nil {
		return time.Time{}, false
	}
	if g == GranularityDate {
		return midnight, true
	}

	if clock := strings.TrimSpace(rec.RecordTime); clock != "" {
		tod, ok := parseTimeOfDay(clock)
		if !ok {
			return time.Time{}, false
		}
		return midnight.Add(tod), true
	}
	// a full timestamp keeps its own offset; without one it is ward-local time
	if len(raw) > len(dayLayout) {
		if t, err := date.ParseIn(raw, loc); err == nil {
			return t, true
		}
	}
	return midnight, true
}

// recordDay extracts YYYY-MM-DD from a record date without any zone conversion.
func recordDay(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if len(s) >= len(dayLayout) && looksLikeISODay(s[:len(dayLayout)]) {
		return s[:len(dayLayout)], true
	}
	t, err := date.Parse(s)
	if err != nil {
		return "", false
	}
	return t.Format(dayLayout), true
}

func looksLikeISODay(s string) bool {
	for i := 0; i < len(s); i++ {
		switch i {
		case 4, 7:
			if s[i] != '-' {
				return false
			}
		default:
			if s[i] < '0' || s[i] > '9' {
				return false
			}
		}
	}
	_, err := time.Parse(dayLayout, s)
	return err == nil
}

func parseTimeOfDay(s string) (time.Duration, bool) {
	for _, layout := range timeOfDayLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Duration(t.Hour())*time.Hour +
			time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second, true
	}
	return 0, false
}

func locationOrLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
