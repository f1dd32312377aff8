package service

import (
	"time"

	"irrigation_controller/internal/clock"
	"irrigation_controller/internal/models"
)

// DaysSinceLastRun returns the calendar-day distance from the program's last run to now.
// ok is false when the program never ran, the stored date is unreadable, or it lies in the
// future (the clock was moved back); such programs are treated as never run.
func DaysSinceLastRun(p models.Program, now time.Time) (days int, ok bool) {
	if p.LastRunDate == "" {
		return 0, false
	}
	last, err := time.ParseInLocation(models.LastRunDateLayout, p.LastRunDate, now.Location())
	if err != nil {
		return 0, false
	}
	days = clock.EpochDay(now) - clock.EpochDay(last)
	if days < 0 {
		return 0, false
	}
	return days, true
}

// DueToday applies the recurrence rule against the last run date.
func DueToday(p models.Program, now time.Time) bool {
	days, ok := DaysSinceLastRun(p, now)
	if !ok {
		return true
	}
	switch p.Recurrence {
	case models.RecurrenceEveryOther:
		return days >= 2
	case models.RecurrenceCustom:
		interval := p.IntervalDays
		if interval < 1 {
			interval = 1
		}
		return days >= interval
	default:
		return days >= 1
	}
}

// IsDue reports whether p should start at now: matching HH:MM, month and recurrence.
func IsDue(p models.Program, now time.Time) bool {
	if now.Format(models.ActivationTimeLayout) != p.ActivationTime {
		return false
	}
	if !p.HasMonth(int(now.Month())) {
		return false
	}
	return DueToday(p, now)
}
