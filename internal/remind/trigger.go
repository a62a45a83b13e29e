package remind

import (
	"time"

	"github.com/roach88/palletwatch/internal/model"
)

// DefaultWindow is how long after a trigger mark a sweep may still fire it.
const DefaultWindow = time.Minute

// TriggerDate returns the date on which reminders for a return on ret
// fire. SameDay fires on ret. DayBefore fires the day before, except that
// Saturday, Sunday and Monday returns move to the preceding Friday.
func TriggerDate(kind Kind, ret model.Date) model.Date {
	if kind != DayBefore {
		return ret
	}
	switch ret.Weekday() {
	case time.Saturday:
		return ret.AddDays(-1)
	case time.Sunday:
		return ret.AddDays(-2)
	case time.Monday:
		return ret.AddDays(-3)
	}
	return ret.AddDays(-1)
}

// inWindow reports whether now lies in [mark, mark+window).
func inWindow(mark, now time.Time, window time.Duration) bool {
	return !now.Before(mark) && now.Before(mark.Add(window))
}
