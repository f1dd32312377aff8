package models

// Recurrence kinds.
const (
	RecurrenceDaily      = "daily"
	RecurrenceEveryOther = "every_other_day"
	RecurrenceCustom     = "custom"
)

// Layouts for the persisted date and time strings.
const (
	LastRunDateLayout    = "2006-01-02"
	ActivationTimeLayout = "15:04"
)

// Step is one zone activation within a program.
type Step struct {
	ZoneID          int `json:"zone_id"`
	DurationMinutes int `json:"duration_minutes"`
}

// Program is a schedulable sequence of steps.
type Program struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Months         []int  `json:"months"`          // 1..12
	ActivationTime string `json:"activation_time"` // "HH:MM"
	Recurrence     string `json:"recurrence"`      // daily | every_other_day | custom
	IntervalDays   int    `json:"interval_days,omitempty"`
	Steps          []Step `json:"steps"`
	LastRunDate    string `json:"last_run_date,omitempty"` // YYYY-MM-DD, empty if never run
}

// HasMonth reports whether m is one of the program's months.
func (p Program) HasMonth(m int) bool {
	for _, pm := range p.Months {
		if pm == m {
			return true
		}
	}
	return false
}

// ExecutionState is the process-wide "a program owns the system" flag.
type ExecutionState struct {
	Running          bool   `json:"running"`
	CurrentProgramID string `json:"current_program_id,omitempty"`
}
