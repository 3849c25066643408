package recurrence

import (
	"time"

	"github.com/yukikurage/task-planner/internal/models"
)

// MatchesRule reports whether task has an occurrence on date's calendar day,
// honoring bounds, exclusions and the seasonal restriction. It does not look
// at materialized history; use Predicate for that.
//
// Days are read in the location of the task's anchor.
func MatchesRule(task models.Task, date time.Time) bool {
	rule := task.Recurrence
	if !rule.IsRecurring() {
		return task.DueDate != nil && SameDay(*task.DueDate, date, task.DueDate.Location())
	}
	if Validate(rule) != nil {
		return false
	}

	anchor := Anchor(task)
	loc := anchor.Location()
	d := date.In(loc)
	day := dayNumber(d)

	if day < dayNumber(anchor) {
		return false
	}
	if rule.End != nil && day > dayNumber(rule.End.In(loc)) {
		return false
	}
	if !rule.MonthActive(d.Month()) {
		return false
	}
	for _, excluded := range task.ExcludedDates {
		if dayNumber(excluded.In(loc)) == day {
			return false
		}
	}
	return onGrid(anchor, rule, d)
}

// onGrid is the closed-form membership test for each cadence.
func onGrid(anchor time.Time, rule models.RecurrenceRule, d time.Time) bool {
	switch rule.Frequency {
	case models.RecurrenceDaily:
		return mod(dayNumber(d)-dayNumber(anchor), rule.Interval) == 0
	case models.RecurrenceWeekly:
		if len(rule.Weekdays) == 0 {
			return mod(dayNumber(d)-dayNumber(anchor), 7*rule.Interval) == 0
		}
		if !weekdaySet(rule.Weekdays)[d.Weekday()] {
			return false
		}
		return mod(floorDiv(weekStart(d)-weekStart(anchor), 7), rule.Interval) == 0
	case models.RecurrenceMonthly:
		if mod(monthsBetween(anchor, d), rule.Interval) != 0 {
			return false
		}
		if rule.UsesNthWeekday() {
			day, ok := nthWeekdayDay(d.Year(), d.Month(), *rule.Nth, time.Weekday(*rule.NthWeekday))
			return ok && d.Day() == day
		}
		day := anchor.Day()
		if rule.DayOfMonth != nil {
			day = *rule.DayOfMonth
		}
		return d.Day() == clampDay(d.Year(), d.Month(), day)
	case models.RecurrenceQuarterly:
		if mod(monthsBetween(anchor, d), 3*rule.Interval) != 0 {
			return false
		}
		return d.Day() == clampDay(d.Year(), d.Month(), anchor.Day())
	case models.RecurrenceYearly:
		if mod(d.Year()-anchor.Year(), rule.Interval) != 0 || d.Month() != anchor.Month() {
			return false
		}
		return d.Day() == clampDay(d.Year(), d.Month(), anchor.Day())
	}
	return false
}

// Predicate answers occurrence questions against one snapshot of the task
// collection, so that already resolved occurrences are not reported again.
type Predicate struct {
	resolved map[string][]time.Time
}

// NewPredicate indexes the completed and missed history records of tasks.
func NewPredicate(tasks []models.Task) *Predicate {
	p := &Predicate{resolved: make(map[string][]time.Time)}
	for i := range tasks {
		t := &tasks[i]
		if !t.IsHistory() {
			continue
		}
		if date, ok := OccurrenceDateOf(*t); ok {
			p.resolved[*t.SeriesID] = append(p.resolved[*t.SeriesID], date)
		}
	}
	return p
}

// OccursOn reports whether task has an unresolved occurrence on date.
// Archived series are not evaluated.
func (p *Predicate) OccursOn(task models.Task, date time.Time) bool {
	if task.IsSeriesRoot() && task.Status == models.TaskStatusArchived {
		return false
	}
	if !MatchesRule(task, date) {
		return false
	}
	if !task.IsSeriesRoot() {
		return true
	}
	return !p.Resolved(task, date)
}

// Resolved reports whether a completed or missed history record already
// stands for root's occurrence on date.
func (p *Predicate) Resolved(root models.Task, date time.Time) bool {
	loc := Anchor(root).Location()
	for _, done := range p.resolved[root.ID] {
		if SameDay(done, date, loc) {
			return true
		}
	}
	return false
}

// OccurrenceDateOf returns the series occurrence a concrete record stands
// for: its generation date when known, else its due date.
func OccurrenceDateOf(t models.Task) (time.Time, bool) {
	if t.GeneratedFrom != nil {
		return t.GeneratedFrom.OccurrenceDate, true
	}
	if t.DueDate != nil {
		return *t.DueDate, true
	}
	return time.Time{}, false
}
