package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yukikurage/task-planner/internal/models"
)

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// OccurrenceView is a read-only, never persisted occurrence of a series.
type OccurrenceView struct {
	Ref         VirtualRef
	RootID      string
	Date        time.Time
	Title       string
	Description string
	Priority    models.TaskPriority
	Status      models.TaskStatus
}

func (v OccurrenceView) ID() string { return v.Ref.ID() }

// Project returns the virtual occurrences of every series root in tasks that
// fall inside r and are not already represented by a stored record. Roots
// with invalid rules are skipped and reported in the returned error; the
// views of every other root are still returned.
func Project(tasks []models.Task, r DateRange) ([]OccurrenceView, error) {
	predicate := NewPredicate(tasks)
	represented := representedDays(tasks)

	var views []OccurrenceView
	var errs []error
	for i := range tasks {
		root := tasks[i]
		if !root.IsSeriesRoot() {
			continue
		}
		if err := Validate(root.Recurrence); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", root.ID, err))
			continue
		}

		anchor := Anchor(root)
		loc := anchor.Location()
		taken := represented[root.ID]
		if root.DueDate != nil {
			taken = append(taken, *root.DueDate)
		}

		for day := dayNumber(r.From.In(loc)); day <= dayNumber(r.To.In(loc)); day++ {
			y, m, d := civilDate(day)
			date := at(y, m, d, anchor)
			if !predicate.OccursOn(root, date) || containsDay(taken, date, loc) {
				continue
			}
			ref := VirtualRef{RootID: root.ID, Date: date}
			views = append(views, OccurrenceView{
				Ref:         ref,
				RootID:      root.ID,
				Date:        date,
				Title:       root.Title,
				Description: root.Description,
				Priority:    root.Priority,
				Status:      models.TaskStatusPlanned,
			})
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].Date.Equal(views[j].Date) {
			return views[i].Date.Before(views[j].Date)
		}
		return views[i].RootID < views[j].RootID
	})
	return views, errors.Join(errs...)
}

// representedDays maps each series id to the occurrence dates that stored
// records already stand for.
func representedDays(tasks []models.Task) map[string][]time.Time {
	out := make(map[string][]time.Time)
	for i := range tasks {
		t := tasks[i]
		if t.SeriesID == nil || t.Recurrence.IsRecurring() {
			continue
		}
		if date, ok := OccurrenceDateOf(t); ok {
			out[*t.SeriesID] = append(out[*t.SeriesID], date)
		}
	}
	return out
}

func containsDay(dates []time.Time, date time.Time, loc *time.Location) bool {
	for _, d := range dates {
		if SameDay(d, date, loc) {
			return true
		}
	}
	return false
}
