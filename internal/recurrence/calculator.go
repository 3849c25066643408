package recurrence

import (
	"time"

	"github.com/yukikurage/task-planner/internal/models"
)

const (
	// maxSeasonalAttempts bounds how many candidates are tried while looking
	// for one that lands in an active month.
	maxSeasonalAttempts = 24
	// seasonalHorizonYears bounds the search for short cadences, where a
	// single skipped season can take far more than 24 steps.
	seasonalHorizonYears = 2
	// maxNthMonthAttempts bounds the search for a month that has a 5th weekday.
	maxNthMonthAttempts = 12
)

// NextDueDate computes the occurrence that follows current under rule, with
// interval and weekday blocks measured from anchor. The result is never before
// current and keeps current's time of day.
func NextDueDate(anchor time.Time, rule models.RecurrenceRule, current time.Time) (time.Time, error) {
	if err := Validate(rule); err != nil {
		return time.Time{}, err
	}
	if !rule.IsRecurring() {
		return time.Time{}, invalid("frequency", "task does not recur")
	}

	anchor = anchor.In(current.Location())
	limit := current.AddDate(seasonalHorizonYears, 0, 0)
	candidate := current
	for attempt := 1; ; attempt++ {
		next, err := step(anchor, rule, candidate)
		if err != nil {
			return time.Time{}, err
		}
		if rule.MonthActive(next.Month()) {
			return next, nil
		}
		if attempt >= maxSeasonalAttempts && next.After(limit) {
			return time.Time{}, invalid("active_months", "no active month reachable from %s", current.Format(time.DateOnly))
		}
		candidate = next
	}
}

// step applies the rule's cadence once, ignoring the seasonal restriction.
func step(anchor time.Time, rule models.RecurrenceRule, current time.Time) (time.Time, error) {
	switch rule.Frequency {
	case models.RecurrenceDaily:
		return current.AddDate(0, 0, rule.Interval), nil
	case models.RecurrenceWeekly:
		if len(rule.Weekdays) == 0 {
			return current.AddDate(0, 0, 7*rule.Interval), nil
		}
		return nextWeekday(anchor, rule, current)
	case models.RecurrenceMonthly:
		if rule.UsesNthWeekday() {
			return nextNthWeekday(rule, current)
		}
		day := anchor.Day()
		if rule.DayOfMonth != nil {
			day = *rule.DayOfMonth
		}
		return stepMonths(current, rule.Interval, day), nil
	case models.RecurrenceQuarterly:
		return stepMonths(current, 3*rule.Interval, anchor.Day()), nil
	case models.RecurrenceYearly:
		day := current.Day()
		if anchor.Month() == current.Month() {
			day = anchor.Day()
		}
		year := current.Year() + rule.Interval
		return at(year, current.Month(), clampDay(year, current.Month(), day), current), nil
	}
	return time.Time{}, invalid("frequency", "%q is not supported", rule.Frequency)
}

// stepMonths moves current by n months onto the given day, clamped to the
// target month's last day.
func stepMonths(current time.Time, n, day int) time.Time {
	year, month := addMonths(current.Year(), current.Month(), n)
	return at(year, month, clampDay(year, month, day), current)
}

// nextWeekday finds the first enabled weekday after current that lies in an
// active week block. Blocks are Interval weeks long, counted from the week
// holding anchor.
func nextWeekday(anchor time.Time, rule models.RecurrenceRule, current time.Time) (time.Time, error) {
	enabled := weekdaySet(rule.Weekdays)
	origin := weekStart(anchor)
	for offset := 1; offset <= 7*rule.Interval+7; offset++ {
		candidate := current.AddDate(0, 0, offset)
		if !enabled[candidate.Weekday()] {
			continue
		}
		weeks := floorDiv(weekStart(candidate)-origin, 7)
		if mod(weeks, rule.Interval) == 0 {
			return candidate, nil
		}
	}
	return time.Time{}, invalid("weekdays", "no weekday reachable from %s", current.Format(time.DateOnly))
}

func nextNthWeekday(rule models.RecurrenceRule, current time.Time) (time.Time, error) {
	year, month := current.Year(), current.Month()
	for attempt := 0; attempt < maxNthMonthAttempts; attempt++ {
		year, month = addMonths(year, month, rule.Interval)
		if day, ok := nthWeekdayDay(year, month, *rule.Nth, time.Weekday(*rule.NthWeekday)); ok {
			return at(year, month, day, current), nil
		}
	}
	return time.Time{}, invalid("nth", "no month with occurrence %d of weekday %d", *rule.Nth, *rule.NthWeekday)
}

func weekdaySet(days []int) map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[time.Weekday(d)] = true
	}
	return set
}
