package models

import "time"

type RecurrenceFrequency string

const (
	RecurrenceNone      RecurrenceFrequency = ""
	RecurrenceDaily     RecurrenceFrequency = "DAILY"
	RecurrenceWeekly    RecurrenceFrequency = "WEEKLY"
	RecurrenceMonthly   RecurrenceFrequency = "MONTHLY"
	RecurrenceQuarterly RecurrenceFrequency = "QUARTERLY"
	RecurrenceYearly    RecurrenceFrequency = "YEARLY"
)

// LastWeekOfMonth is the Nth value selecting the last matching weekday of a month.
const LastWeekOfMonth = -1

// RecurrenceRule describes how a task repeats. The zero value is a one-off task.
//
// Weekdays use 0=Sunday..6=Saturday and ActiveMonths use 0=January..11=December.
// DayOfMonth wins over Nth/NthWeekday when both are set.
type RecurrenceRule struct {
	Frequency    RecurrenceFrequency `json:"frequency,omitempty"`
	Interval     int                 `json:"interval,omitempty"`
	Weekdays     []int               `json:"weekdays,omitempty"`
	DayOfMonth   *int                `json:"day_of_month,omitempty"`
	Nth          *int                `json:"nth,omitempty"`
	NthWeekday   *int                `json:"nth_weekday,omitempty"`
	ActiveMonths []int               `json:"active_months,omitempty"`
	Start        *time.Time          `json:"recurrence_start,omitempty"`
	End          *time.Time          `json:"recurrence_end,omitempty"`
}

// IsRecurring reports whether the rule repeats at all
func (r RecurrenceRule) IsRecurring() bool {
	return r.Frequency != RecurrenceNone
}

// UsesNthWeekday reports whether a monthly rule is an "nth weekday" rule
func (r RecurrenceRule) UsesNthWeekday() bool {
	return r.DayOfMonth == nil && r.Nth != nil
}

// MonthActive reports whether the seasonal restriction allows month m
func (r RecurrenceRule) MonthActive(m time.Month) bool {
	if len(r.ActiveMonths) == 0 {
		return true
	}
	for _, active := range r.ActiveMonths {
		if active == int(m)-1 {
			return true
		}
	}
	return false
}

func (r RecurrenceRule) Clone() RecurrenceRule {
	out := r
	if r.Weekdays != nil {
		out.Weekdays = append([]int(nil), r.Weekdays...)
	}
	if r.ActiveMonths != nil {
		out.ActiveMonths = append([]int(nil), r.ActiveMonths...)
	}
	out.DayOfMonth = cloneInt(r.DayOfMonth)
	out.Nth = cloneInt(r.Nth)
	out.NthWeekday = cloneInt(r.NthWeekday)
	out.Start = cloneTime(r.Start)
	out.End = cloneTime(r.End)
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
