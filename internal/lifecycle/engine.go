// Package lifecycle applies status transitions to snapshots of the task
// collection, materializing and retracting occurrence history of recurring
// series as it goes.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yukikurage/task-planner/internal/models"
	"github.com/yukikurage/task-planner/internal/recurrence"
)

var (
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrNotOverdue         = errors.New("task is not overdue")
	ErrNotRecurring       = errors.New("task does not recur")
	ErrNotAnOccurrence    = errors.New("date is not an occurrence of the series")
	ErrNotVirtual         = errors.New("date is the series root's current occurrence")
	ErrOccurrenceDetached = errors.New("occurrence is represented by a detached task")
)

// maxSkips bounds how many excluded or detached occurrences the root may
// skip over when it advances.
const maxSkips = 366

// Engine applies transitions. It holds no task state: every call reads a
// snapshot and returns a new one, leaving the input untouched.
type Engine struct {
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

type Option func(*Engine)

// WithClock overrides the time source used for completion timestamps and
// overdue checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides how ids for generated records are made.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an Engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApplyTransition moves task taskID to status to. occurrenceDate selects
// which occurrence of a series root is meant; nil means its current one.
//
// An unknown taskID returns tasks unchanged with a nil error. On error the
// returned snapshot is tasks, unchanged.
func (e *Engine) ApplyTransition(tasks []models.Task, taskID string, to models.TaskStatus, occurrenceDate *time.Time) ([]models.Task, error) {
	idx := indexOf(tasks, taskID)
	if idx < 0 {
		return tasks, nil
	}
	if !to.Valid() {
		return tasks, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, to)
	}

	var next []models.Task
	var err error
	if tasks[idx].IsSeriesRoot() {
		next, err = e.applyToRoot(tasks, idx, to, occurrenceDate)
	} else {
		next, err = e.applyToRecord(tasks, idx, to)
	}
	if err != nil {
		return tasks, err
	}
	return next, nil
}

func (e *Engine) applyToRoot(tasks []models.Task, idx int, to models.TaskStatus, occurrenceDate *time.Time) ([]models.Task, error) {
	root := tasks[idx]
	from := root.Status

	if occurrenceDate != nil && !isCurrent(root, *occurrenceDate) && to.Resolved() {
		if from == models.TaskStatusArchived {
			return nil, illegal(root, to)
		}
		return e.resolveOccurrence(tasks, idx, to, *occurrenceDate)
	}

	// Any other occurrence than the current one has no status of its own.
	// It can only be reopened through the record that resolved it.
	if occurrenceDate != nil && !isCurrent(root, *occurrenceDate) {
		if to != models.TaskStatusPlanned {
			return nil, fmt.Errorf("%w: %s occurrence on %s cannot move to %s",
				ErrIllegalTransition, root.ID, occurrenceDate.Format(time.DateOnly), to)
		}
		if h := representative(tasks, root, *occurrenceDate); h >= 0 {
			return e.applyToRecord(tasks, h, to)
		}
		return tasks, nil
	}

	// Undo of the latest completion, addressed through the root.
	if to == models.TaskStatusPlanned && from == models.TaskStatusPlanned {
		if h := latestResolution(tasks, root); h >= 0 && tasks[h].Status == models.TaskStatusCompleted {
			return e.retract(tasks, h)
		}
		return tasks, nil
	}

	if !CanTransition(from, to) {
		return nil, illegal(root, to)
	}
	if from == to {
		return tasks, nil
	}

	switch to {
	case models.TaskStatusCompleted, models.TaskStatusMissed:
		return e.resolveOccurrence(tasks, idx, to, currentOccurrence(root))
	default:
		updated := root.Clone()
		updated.Status = to
		if to == models.TaskStatusPlanned {
			updated.CompletedAt = nil
		}
		return replace(tasks, idx, updated), nil
	}
}

// resolveOccurrence freezes root's occurrence on date into a history record
// with status to. When date is the root's current occurrence the root
// advances to the following one.
func (e *Engine) resolveOccurrence(tasks []models.Task, idx int, to models.TaskStatus, date time.Time) ([]models.Task, error) {
	root := tasks[idx]
	anchor := recurrence.Anchor(root)
	current := isCurrent(root, date)
	if current && root.DueDate != nil {
		date = *root.DueDate
	} else {
		date = recurrence.OnDay(date, anchor)
	}

	if err := recurrence.Validate(root.Recurrence); err != nil {
		return nil, fmt.Errorf("task %s: %w", root.ID, err)
	}
	if !current && !recurrence.MatchesRule(root, date) {
		return nil, fmt.Errorf("%w: %s on %s", ErrNotAnOccurrence, root.ID, date.Format(time.DateOnly))
	}
	if rep := representative(tasks, root, date); rep >= 0 {
		if tasks[rep].Status.Resolved() {
			return tasks, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrOccurrenceDetached, tasks[rep].ID)
	}
	if to == models.TaskStatusMissed && !e.overdue(date) {
		return nil, fmt.Errorf("%w: %s is due %s", ErrNotOverdue, root.ID, date.Format(time.DateOnly))
	}

	gen := models.Generation{
		SeriesID:         root.ID,
		OccurrenceDate:   date,
		PriorRootStatus:  root.Status,
		PriorRootDueDate: cloneTime(root.DueDate),
	}

	updated := root.Clone()
	if current {
		next, err := e.advance(tasks, root, anchor, date)
		if err != nil {
			return nil, err
		}
		if next == nil {
			// The series is exhausted; the root itself takes the final status.
			updated.Status = to
			if to == models.TaskStatusCompleted {
				now := e.now()
				updated.CompletedAt = &now
			}
			return replace(tasks, idx, updated), nil
		}
		if updated.Recurrence.Start == nil {
			pinned := anchor
			updated.Recurrence.Start = &pinned
			gen.AnchorPinned = true
		}
		gen.RootAdvancedTo = cloneTime(next)
		updated.DueDate = next
		updated.Status = models.TaskStatusPlanned
		updated.CompletedAt = nil
	}

	history := e.materialize(root, date, to, gen)
	out := replace(tasks, idx, updated)
	return append(out, history), nil
}

// advance returns the occurrence after date that is neither excluded nor
// already represented by a stored record, or nil once it would pass the
// recurrence end.
func (e *Engine) advance(tasks []models.Task, root models.Task, anchor, date time.Time) (*time.Time, error) {
	loc := anchor.Location()
	cursor := date
	for i := 0; i < maxSkips; i++ {
		next, err := recurrence.NextDueDate(anchor, root.Recurrence, cursor)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", root.ID, err)
		}
		if end := root.Recurrence.End; end != nil && next.After(*end) && !recurrence.SameDay(next, *end, loc) {
			return nil, nil
		}
		if recurrence.MatchesRule(root, next) && representative(tasks, root, next) < 0 {
			return &next, nil
		}
		cursor = next
	}
	return nil, fmt.Errorf("task %s: %w", root.ID, &recurrence.RuleError{Field: "excluded_dates", Reason: "exclude every reachable occurrence"})
}

func (e *Engine) materialize(root models.Task, date time.Time, status models.TaskStatus, gen models.Generation) models.Task {
	now := e.now()
	seriesID := root.ID
	h := root.Clone()
	h.ID = e.newID()
	h.SeriesID = &seriesID
	h.Recurrence = models.RecurrenceRule{}
	h.Status = status
	h.DueDate = &date
	h.CreatedAt = now
	h.UpdatedAt = time.Time{}
	h.CompletedAt = nil
	if status == models.TaskStatusCompleted {
		h.CompletedAt = &now
	}
	h.ExcludedDates = nil
	h.Comments = nil
	h.IsRecurringException = false
	h.GeneratedFrom = &gen
	return h
}

func (e *Engine) applyToRecord(tasks []models.Task, idx int, to models.TaskStatus) ([]models.Task, error) {
	task := tasks[idx]
	from := task.Status
	if !CanTransition(from, to) {
		return nil, illegal(task, to)
	}
	if from == to {
		return tasks, nil
	}

	if from == models.TaskStatusCompleted && to == models.TaskStatusPlanned && task.IsHistory() {
		return e.retract(tasks, idx)
	}

	if to.Resolved() {
		if to == models.TaskStatusMissed && (task.DueDate == nil || !e.overdue(*task.DueDate)) {
			return nil, fmt.Errorf("%w: %s", ErrNotOverdue, task.ID)
		}
		if duplicateResolution(tasks, idx) {
			return tasks, nil
		}
	}

	updated := task.Clone()
	updated.Status = to
	switch to {
	case models.TaskStatusCompleted:
		now := e.now()
		updated.CompletedAt = &now
	case models.TaskStatusPlanned:
		updated.CompletedAt = nil
		if task.IsHistory() {
			// A restored missed occurrence lives on as a detached one-off.
			updated.IsRecurringException = true
		}
	}
	return replace(tasks, idx, updated), nil
}

// retract removes history record h and, when the root still sits where that
// resolution moved it, rewinds the root.
func (e *Engine) retract(tasks []models.Task, h int) ([]models.Task, error) {
	history := tasks[h]
	gen := history.GeneratedFrom
	out := remove(tasks, h)
	if gen == nil || gen.RootAdvancedTo == nil {
		return out, nil
	}

	r := indexOf(out, gen.SeriesID)
	if r < 0 {
		return out, nil
	}
	root := out[r]
	if root.DueDate == nil || !root.DueDate.Equal(*gen.RootAdvancedTo) {
		e.logger.Warn("unresolved successor: series root was rescheduled after completion, leaving its schedule",
			slog.String("series_id", gen.SeriesID),
			slog.String("history_id", history.ID),
			slog.Time("occurrence_date", gen.OccurrenceDate),
		)
		return out, nil
	}

	updated := root.Clone()
	updated.DueDate = cloneTime(gen.PriorRootDueDate)
	updated.Status = gen.PriorRootStatus
	if !updated.Status.Open() {
		updated.Status = models.TaskStatusPlanned
	}
	updated.CompletedAt = nil
	if gen.AnchorPinned {
		updated.Recurrence.Start = nil
	}
	return replace(out, r, updated), nil
}

// overdue reports whether date's day lies before today, in date's location.
func (e *Engine) overdue(date time.Time) bool {
	now := e.now().In(date.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return date.Before(today)
}

// latestResolution finds the history record whose resolution put root at its
// current due date.
func latestResolution(tasks []models.Task, root models.Task) int {
	if root.DueDate == nil {
		return -1
	}
	for i := len(tasks) - 1; i >= 0; i-- {
		t := tasks[i]
		if !t.IsHistory() || *t.SeriesID != root.ID || t.GeneratedFrom == nil {
			continue
		}
		if adv := t.GeneratedFrom.RootAdvancedTo; adv != nil && adv.Equal(*root.DueDate) {
			return i
		}
	}
	return -1
}

// representative finds the stored record, other than root, standing for
// root's occurrence on date.
func representative(tasks []models.Task, root models.Task, date time.Time) int {
	loc := recurrence.Anchor(root).Location()
	for i := range tasks {
		t := tasks[i]
		if t.SeriesID == nil || *t.SeriesID != root.ID || t.Recurrence.IsRecurring() {
			continue
		}
		if d, ok := recurrence.OccurrenceDateOf(t); ok && recurrence.SameDay(d, date, loc) {
			return i
		}
	}
	return -1
}

// duplicateResolution reports whether another record already resolved the
// same series occurrence as tasks[idx].
func duplicateResolution(tasks []models.Task, idx int) bool {
	task := tasks[idx]
	if task.SeriesID == nil {
		return false
	}
	date, ok := recurrence.OccurrenceDateOf(task)
	if !ok {
		return false
	}
	for i := range tasks {
		t := tasks[i]
		if i == idx || !t.IsHistory() || *t.SeriesID != *task.SeriesID {
			continue
		}
		if d, ok := recurrence.OccurrenceDateOf(t); ok && recurrence.SameDay(d, date, date.Location()) {
			return true
		}
	}
	return false
}

func currentOccurrence(root models.Task) time.Time {
	if root.DueDate != nil {
		return *root.DueDate
	}
	return recurrence.Anchor(root)
}

func isCurrent(root models.Task, date time.Time) bool {
	return recurrence.SameDay(currentOccurrence(root), date, recurrence.Anchor(root).Location())
}

func illegal(t models.Task, to models.TaskStatus) error {
	return fmt.Errorf("%w: %s cannot move from %s to %s", ErrIllegalTransition, t.ID, t.Status, to)
}

func indexOf(tasks []models.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// replace returns a copy of tasks with tasks[idx] swapped for t.
func replace(tasks []models.Task, idx int, t models.Task) []models.Task {
	out := make([]models.Task, len(tasks), len(tasks)+1)
	copy(out, tasks)
	out[idx] = t
	return out
}

func remove(tasks []models.Task, idx int) []models.Task {
	out := make([]models.Task, 0, len(tasks)-1)
	out = append(out, tasks[:idx]...)
	return append(out, tasks[idx+1:]...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
