package schedule

import (
	"fmt"
	"time"
)

// SlotWidthMinutes is the fixed width of every appointment window.
const SlotWidthMinutes = 20

// Slot is a 20-minute appointment window identified by its start time
// in "HH:MM" form, e.g. "09:20".
type Slot string

// ParseSlot validates s as an "HH:MM" start time aligned to the
// 20-minute grid.
func ParseSlot(s string) (Slot, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%2d:%2d", &h, &m); err != nil || len(s) != 5 || s[2] != ':' {
		return "", fmt.Errorf("invalid slot %q: want HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return "", fmt.Errorf("invalid slot %q: out of range", s)
	}
	if m%SlotWidthMinutes != 0 {
		return "", fmt.Errorf("invalid slot %q: not on the %d-minute grid", s, SlotWidthMinutes)
	}
	return Slot(s), nil
}

// Minutes returns the start time as minutes since midnight.
func (s Slot) Minutes() int {
	var h, m int
	fmt.Sscanf(string(s), "%2d:%2d", &h, &m)
	return h*60 + m
}

// Delta returns the absolute distance to other in minutes.
func (s Slot) Delta(other Slot) int {
	d := s.Minutes() - other.Minutes()
	if d < 0 {
		d = -d
	}
	return d
}

// DateOf truncates t to a civil date at UTC midnight. All dates in the
// engine are normalized this way before comparison or storage.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "YYYY-MM-DD" calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// DateKey formats t as "YYYY-MM-DD".
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// NextBusinessDay returns the day after t, skipping Sundays. The clinic
// never opens on Sunday so no relocation target can land there.
func NextBusinessDay(t time.Time) time.Time {
	next := DateOf(t).AddDate(0, 0, 1)
	if next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
