package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yukikurage/task-planner/internal/models"
	"github.com/yukikurage/task-planner/internal/recurrence"
)

// maxSweepSteps bounds how many occurrences one sweep may mark missed for a
// single series.
const maxSweepSteps = 1000

// OccurrencePatch carries the fields a user changed on one occurrence.
// Nil fields are left alone.
type OccurrencePatch struct {
	Title       *string
	Description *string
	Priority    *models.TaskPriority
	DueDate     *time.Time
	Comment     *string
}

// OnlyComment reports whether p changes nothing but the comments.
func (p OccurrencePatch) OnlyComment() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.DueDate == nil
}

// EditOccurrence applies patch to the occurrence of series rootID on date.
// A patch carrying only a comment is written onto the root, since comments
// are shared by the whole series. Any other change detaches the occurrence
// into an exception task, leaving the root's schedule as it was.
func (e *Engine) EditOccurrence(tasks []models.Task, rootID string, date time.Time, patch OccurrencePatch) ([]models.Task, error) {
	idx := indexOf(tasks, rootID)
	if idx < 0 {
		return tasks, nil
	}
	root := tasks[idx]
	if !root.IsSeriesRoot() {
		return tasks, fmt.Errorf("%w: %s", ErrNotRecurring, rootID)
	}
	if isCurrent(root, date) {
		return tasks, fmt.Errorf("%w: %s on %s", ErrNotVirtual, rootID, date.Format(time.DateOnly))
	}
	date = recurrence.OnDay(date, recurrence.Anchor(root))

	out := tasks
	if patch.Comment != nil {
		updated := root.Clone()
		updated.Comments = append(updated.Comments, e.comment(*patch.Comment, date))
		out = replace(out, idx, updated)
	}
	if patch.OnlyComment() {
		return out, nil
	}

	if rep := representative(out, root, date); rep >= 0 {
		if !out[rep].IsRecurringException {
			return tasks, fmt.Errorf("%w: %s", ErrOccurrenceDetached, out[rep].ID)
		}
		updated := out[rep].Clone()
		patch.Apply(&updated)
		return replace(out, rep, updated), nil
	}
	if !recurrence.MatchesRule(root, date) {
		return tasks, fmt.Errorf("%w: %s on %s", ErrNotAnOccurrence, rootID, date.Format(time.DateOnly))
	}

	seriesID := root.ID
	exception := root.Clone()
	exception.ID = e.newID()
	exception.SeriesID = &seriesID
	exception.Recurrence = models.RecurrenceRule{}
	exception.IsRecurringException = true
	exception.Status = models.TaskStatusPlanned
	exception.DueDate = &date
	exception.CreatedAt = e.now()
	exception.UpdatedAt = time.Time{}
	exception.CompletedAt = nil
	exception.ExcludedDates = nil
	exception.Comments = nil
	exception.GeneratedFrom = &models.Generation{SeriesID: root.ID, OccurrenceDate: date}
	patch.Apply(&exception)
	return append(out, exception), nil
}

// Apply copies the set fields of p onto t. Comment is not applied.
func (p OccurrencePatch) Apply(t *models.Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
}

// EditTask applies patch to the stored task id. A comment is appended to the
// task itself. Moving a series root is only allowed onto another occurrence
// of its rule.
func (e *Engine) EditTask(tasks []models.Task, id string, patch OccurrencePatch) ([]models.Task, error) {
	idx := indexOf(tasks, id)
	if idx < 0 {
		return tasks, nil
	}
	updated := tasks[idx].Clone()

	if patch.DueDate != nil && updated.IsSeriesRoot() {
		if updated.Recurrence.Start == nil {
			pinned := recurrence.Anchor(updated)
			updated.Recurrence.Start = &pinned
		}
		if !recurrence.MatchesRule(updated, *patch.DueDate) {
			return tasks, fmt.Errorf("%w: %s on %s", ErrNotAnOccurrence, id, patch.DueDate.Format(time.DateOnly))
		}
	}
	patch.Apply(&updated)

	if patch.Comment != nil {
		date := e.now()
		if updated.DueDate != nil {
			date = *updated.DueDate
		}
		updated.Comments = append(updated.Comments, e.comment(*patch.Comment, date))
	}
	return replace(tasks, idx, updated), nil
}

func (e *Engine) comment(text string, date time.Time) models.Comment {
	d := date
	return models.Comment{
		ID:             e.newID(),
		Text:           text,
		OccurrenceDate: &d,
		CreatedAt:      e.now(),
	}
}

// ExcludeOccurrence removes the single occurrence of series rootID on date.
// Excluding the root's current occurrence advances the root past it.
func (e *Engine) ExcludeOccurrence(tasks []models.Task, rootID string, date time.Time) ([]models.Task, error) {
	idx := indexOf(tasks, rootID)
	if idx < 0 {
		return tasks, nil
	}
	root := tasks[idx]
	if !root.IsSeriesRoot() {
		return tasks, fmt.Errorf("%w: %s", ErrNotRecurring, rootID)
	}
	anchor := recurrence.Anchor(root)
	for _, excluded := range root.ExcludedDates {
		if recurrence.SameDay(excluded, date, anchor.Location()) {
			return tasks, nil
		}
	}

	current := isCurrent(root, date)
	date = recurrence.OnDay(date, anchor)
	updated := root.Clone()
	updated.ExcludedDates = append(updated.ExcludedDates, date)
	if current {
		if updated.Recurrence.Start == nil {
			pinned := anchor
			updated.Recurrence.Start = &pinned
		}
		next, err := e.advance(tasks, updated, anchor, currentOccurrence(root))
		if err != nil {
			return tasks, err
		}
		if next == nil {
			updated.Status = models.TaskStatusArchived
		} else {
			updated.DueDate = next
		}
	}
	return replace(tasks, idx, updated), nil
}

// SweepOverdue marks every open task whose due day lies before today as
// missed. Series roots materialize one missed record per skipped occurrence
// until their current occurrence is no longer overdue. Tasks whose rule is
// invalid are skipped and reported in the returned error.
func (e *Engine) SweepOverdue(tasks []models.Task) ([]models.Task, error) {
	ids := make([]string, 0, len(tasks))
	for i := range tasks {
		t := tasks[i]
		if t.Status.Open() && t.DueDate != nil && e.overdue(*t.DueDate) {
			ids = append(ids, t.ID)
		}
	}

	var errs []error
	out := tasks
	for _, id := range ids {
		for step := 0; step < maxSweepSteps; step++ {
			idx := indexOf(out, id)
			if idx < 0 {
				break
			}
			t := out[idx]
			if !t.Status.Open() || t.DueDate == nil || !e.overdue(*t.DueDate) {
				break
			}
			next, err := e.ApplyTransition(out, id, models.TaskStatusMissed, nil)
			if err != nil {
				if !errors.Is(err, ErrOccurrenceDetached) {
					errs = append(errs, err)
				}
				break
			}
			if after := next[indexOf(next, id)]; after.Status == t.Status && after.DueDate != nil && after.DueDate.Equal(*t.DueDate) {
				break
			}
			out = next
		}
	}
	if missed := len(out) - len(tasks); missed > 0 {
		e.logger.Info("overdue sweep materialized missed occurrences", slog.Int("count", missed))
	}
	return out, errors.Join(errs...)
}
