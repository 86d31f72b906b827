package projection

import (
	"fmt"
	"time"
)

// Window names a dashboard period relative to today.
type Window string

const (
	WindowMonth Window = "month"
	Window15d   Window = "15d"
	Window30d   Window = "30d"
	Window60d   Window = "60d"
)

// Windows lists the supported windows in display order.
var Windows = []Window{WindowMonth, Window15d, Window30d, Window60d}

// ParseWindow validates a window name.
func ParseWindow(s string) (Window, error) {
	for _, w := range Windows {
		if string(w) == s {
			return w, nil
		}
	}
	return "", fmt.Errorf("unknown window %q (want month, 15d, 30d or 60d)", s)
}

// Range returns the inclusive date range of the window. "month" is the
// calendar month of today; the day windows run from today to today+N.
func (w Window) Range(today time.Time) (start, end time.Time, err error) {
	today = Day(today)
	switch w {
	case WindowMonth:
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1), nil
	case Window15d:
		return today, today.AddDate(0, 0, 15), nil
	case Window30d:
		return today, today.AddDate(0, 0, 30), nil
	case Window60d:
		return today, today.AddDate(0, 0, 60), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unknown window %q", w)
}
