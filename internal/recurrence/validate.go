package recurrence

import (
	"time"

	"github.com/yukikurage/task-planner/internal/models"
)

// Validate checks that rule's parameters are within their domains.
// A rule that does not recur is always valid.
func Validate(rule models.RecurrenceRule) error {
	switch rule.Frequency {
	case models.RecurrenceNone:
		return nil
	case models.RecurrenceDaily, models.RecurrenceWeekly, models.RecurrenceMonthly,
		models.RecurrenceQuarterly, models.RecurrenceYearly:
	default:
		return invalid("frequency", "%q is not supported", rule.Frequency)
	}

	if rule.Interval < 1 {
		return invalid("interval", "must be at least 1, got %d", rule.Interval)
	}
	for _, wd := range rule.Weekdays {
		if wd < 0 || wd > 6 {
			return invalid("weekdays", "%d is outside 0..6", wd)
		}
	}
	for _, m := range rule.ActiveMonths {
		if m < 0 || m > 11 {
			return invalid("active_months", "%d is outside 0..11", m)
		}
	}
	if rule.DayOfMonth != nil && (*rule.DayOfMonth < 1 || *rule.DayOfMonth > 31) {
		return invalid("day_of_month", "%d is outside 1..31", *rule.DayOfMonth)
	}
	if rule.Nth != nil {
		if n := *rule.Nth; n != models.LastWeekOfMonth && (n < 1 || n > 5) {
			return invalid("nth", "%d is neither -1 nor within 1..5", n)
		}
		if rule.NthWeekday == nil {
			return invalid("nth_weekday", "is required when nth is set")
		}
	}
	if rule.NthWeekday != nil && (*rule.NthWeekday < 0 || *rule.NthWeekday > 6) {
		return invalid("nth_weekday", "%d is outside 0..6", *rule.NthWeekday)
	}
	if rule.Start != nil && rule.End != nil && rule.End.Before(*rule.Start) {
		return invalid("recurrence_end", "is before recurrence_start")
	}
	return nil
}

// Anchor returns the date cadence is measured from: the explicit recurrence
// start, else the due date, else the creation date.
func Anchor(task models.Task) time.Time {
	switch {
	case task.Recurrence.Start != nil:
		return *task.Recurrence.Start
	case task.DueDate != nil:
		return *task.DueDate
	default:
		return task.CreatedAt
	}
}
