package member

import (
	"strings"
	"time"
)

// DateLayout is the calendar-date form used by date inputs and the member store.
const DateLayout = "2006-01-02"

// dayMonthLayout is how dates are typed at the desk: 31/12/2025 or 1/2/2025.
const dayMonthLayout = "2/1/2006"

// NormalizeDate reduces a date representation to YYYY-MM-DD.
// Accepts a bare date or a date followed by a time part separated by 'T'
// or a space ("2025-01-13 10:30:00", "2025-01-01T05:00:00-05:00"). The time
// of day and any zone offset are dropped, so the calendar day is the one
// written by the server. Day/month/year input ("31/12/2025") is also read.
// PRE: none
// POST: returns "" for blank input, the normalized date, or s unchanged if unreadable
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.Count(s, "/") == 2 {
		t, err := time.Parse(dayMonthLayout, s)
		if err != nil {
			return s
		}
		return t.Format(DateLayout)
	}
	if len(s) < len(DateLayout) {
		return s
	}
	day := s[:len(DateLayout)]
	if len(s) > len(DateLayout) {
		if sep := s[len(DateLayout)]; sep != 'T' && sep != ' ' {
			return s
		}
	}
	if _, err := time.Parse(DateLayout, day); err != nil {
		return s
	}
	return day
}

func parseCalendarDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
