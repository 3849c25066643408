package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/task-planner/internal/models"
	"github.com/yukikurage/task-planner/internal/recurrence"
)

var testNow = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func utc(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func newTestEngine() *Engine {
	n := 0
	return NewEngine(
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("gen-%d", n)
		}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func seriesRoot(due time.Time, rule models.RecurrenceRule) models.Task {
	return models.Task{
		ID:         "root",
		Title:      "Water plants",
		Status:     models.TaskStatusPlanned,
		Priority:   models.TaskPriorityMedium,
		DueDate:    ptr(due),
		Recurrence: rule,
		CreatedAt:  time.Date(2023, 12, 31, 8, 0, 0, 0, time.UTC),
	}
}

func oneOff(id string, due time.Time) models.Task {
	return models.Task{
		ID:        id,
		Title:     "File taxes",
		Status:    models.TaskStatusPlanned,
		Priority:  models.TaskPriorityHigh,
		DueDate:   ptr(due),
		CreatedAt: time.Date(2023, 12, 1, 8, 0, 0, 0, time.UTC),
	}
}

func cloneAll(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}

func find(t *testing.T, tasks []models.Task, id string) models.Task {
	t.Helper()
	for _, task := range tasks {
		if task.ID == id {
			return task
		}
	}
	t.Fatalf("task %s not in snapshot", id)
	return models.Task{}
}

func daily() models.RecurrenceRule {
	return models.RecurrenceRule{Frequency: models.RecurrenceDaily, Interval: 1}
}

func TestApplyTransition_CompleteOneOff(t *testing.T) {
	e := newTestEngine()
	tasks := []models.Task{oneOff("tax", utc(2024, 1, 15))}
	before := cloneAll(tasks)

	out, err := e.ApplyTransition(tasks, "tax", models.TaskStatusCompleted, nil)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, models.TaskStatusCompleted, out[0].Status)
	require.NotNil(t, out[0].CompletedAt)
	assert.Equal(t, testNow, *out[0].CompletedAt)
	assert.Equal(t, before, tasks, "input snapshot must not change")

	undone, err := e.ApplyTransition(out, "tax", models.TaskStatusPlanned, nil)
	require.NoError(t, err)
	assert.Equal(t, before, undone)
}

func TestApplyTransition_CompleteSeriesRoot(t *testing.T) {
	e := newTestEngine()
	tasks := []models.Task{seriesRoot(utc(2024, 1, 1), daily())}
	before := cloneAll(tasks)

	out, err := e.ApplyTransition(tasks, "root", models.TaskStatusCompleted, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, before, tasks)

	root := find(t, out, "root")
	assert.Equal(t, models.TaskStatusPlanned, root.Status)
	assert.Equal(t, utc(2024, 1, 2), *root.DueDate)
	assert.Nil(t, root.CompletedAt)

	history := find(t, out, "gen-1")
	assert.Equal(t, "root", *history.SeriesID)
	assert.False(t, history.Recurrence.IsRecurring())
	assert.Equal(t, models.TaskStatusCompleted, history.Status)
	assert.Equal(t, utc(2024, 1, 1), *history.DueDate)
	assert.Equal(t, testNow, *history.CompletedAt)
	assert.Equal(t, "Water plants", history.Title)
	require.NotNil(t, history.GeneratedFrom)
	assert.Equal(t, utc(2024, 1, 2), *history.GeneratedFrom.RootAdvancedTo)
	assert.True(t, history.IsHistory())
}

func TestApplyTransition_CompleteUndoRoundTrip(t *testing.T) {
	start := utc(2024, 6, 15)
	rules := map[string]struct {
		due    time.Time
		rule   models.RecurrenceRule
		status models.TaskStatus
	}{
		"daily":         {utc(2024, 1, 1), daily(), models.TaskStatusPlanned},
		"in progress":   {utc(2024, 1, 1), models.RecurrenceRule{Frequency: models.RecurrenceDaily, Interval: 3}, models.TaskStatusInProgress},
		"weekly":        {utc(2024, 1, 1), models.RecurrenceRule{Frequency: models.RecurrenceWeekly, Interval: 1}, models.TaskStatusPlanned},
		"weekdays":      {utc(2024, 1, 3), models.RecurrenceRule{Frequency: models.RecurrenceWeekly, Interval: 2, Weekdays: []int{1, 3, 5}}, models.TaskStatusPlanned},
		"month end":     {utc(2024, 1, 31), models.RecurrenceRule{Frequency: models.RecurrenceMonthly, Interval: 1}, models.TaskStatusPlanned},
		"last saturday": {utc(2024, 1, 27), models.RecurrenceRule{Frequency: models.RecurrenceMonthly, Interval: 1, Nth: ptr(-1), NthWeekday: ptr(6)}, models.TaskStatusPlanned},
		"quarterly":     {utc(2024, 2, 29), models.RecurrenceRule{Frequency: models.RecurrenceQuarterly, Interval: 1}, models.TaskStatusPlanned},
		"yearly":        {utc(2024, 2, 29), models.RecurrenceRule{Frequency: models.RecurrenceYearly, Interval: 1}, models.TaskStatusPlanned},
		"seasonal":      {utc(2024, 8, 15), models.RecurrenceRule{Frequency: models.RecurrenceMonthly, Interval: 1, ActiveMonths: []int{5, 6, 7}, Start: &start}, models.TaskStatusPlanned},
	}

	for name, tc := range rules {
		t.Run(name, func(t *testing.T) {
			e := newTestEngine()
			root := seriesRoot(tc.due, tc.rule)
			root.Status = tc.status
			original := []models.Task{oneOff("tax", utc(2024, 1, 15)), root}

			completed, err := e.ApplyTransition(original, "root", models.TaskStatusCompleted, nil)
			require.NoError(t, err)
			require.Len(t, completed, 3)

			viaRoot, err := e.ApplyTransition(completed, "root", models.TaskStatusPlanned, nil)
			require.NoError(t, err)
			assert.Equal(t, original, viaRoot)

			viaHistory, err := e.ApplyTransition(completed, "gen-1", models.TaskStatusPlanned, nil)
			require.NoError(t, err)
			assert.Equal(t, original, viaHistory)
		})
	}
}

func TestApplyTransition_NoDuplicateCompletion(t *testing.T) {
	e := newTestEngine()
	occurrence := utc(2024, 1, 1)
	tasks := []models.Task{seriesRoot(occurrence, daily())}

	once, err := e.ApplyTransition(tasks, "root", models.TaskStatusCompleted, &occurrence)
	require.NoError(t, err)
	twice, err := e.ApplyTransition(once, "root", models.TaskStatusCompleted, &occurrence)
	require.NoError(t, err)

	assert.Equal(t, once, twice)

	again, err := e.ApplyTransition(twice, "gen-1", models.TaskStatusCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, once, again)
}

func TestApplyTransition_ExhaustedSeries(t *testing.T) {
	e := newTestEngine()
	rule := daily()
	rule.End = ptr(utc(2024, 1, 1))
	tasks := []models.Task{seriesRoot(utc(2024, 1, 1), rule)}

	out, err := e.ApplyTransition(tasks, "root", models.TaskStatusCompleted, nil)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, models.TaskStatusCompleted, out[0].Status)
	assert.Equal(t, utc(2024, 1, 1), *out[0].DueDate)

	undone, err := e.ApplyTransition(out, "root", models.TaskStatusPlanned, nil)
	require.NoError(t, err)
	assert.Equal(t, tasks, undone)
}

func TestApplyTransition_MissedSeriesOccurrence(t *testing.T) {
	e := newTestEngine()
	tasks := []models.Task{seriesRoot(utc(2024, 1, 1), daily())}

	out, err := e.ApplyTransition(tasks, "root", models.TaskStatusMissed, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)

	history := find(t, out, "gen-1")
	assert.Equal(t, models.TaskStatusMissed, history.Status)
	assert.Nil(t, history.CompletedAt)
	assert.Equal(t, utc(2024, 1, 2), *find(t, out, "root").DueDate)

	restored, err := e.ApplyTransition(out, "gen-1", models.TaskStatusPlanned, nil)
	require.NoError(t, err)
	require.Len(t, restored, 2)

	record := find(t, restored, "gen-1")
	assert.Equal(t, models.TaskStatusPlanned, record.Status)
	assert.True(t, record.IsRecurringException)
	assert.Equal(t, find(t, out, "root"), find(t, restored, "root"), "restoring a missed occurrence leaves the root alone")

	_, err = e.ApplyTransition(restored, "root", models.TaskStatusCompleted, ptr(utc(2024, 1, 1)))
	assert.True(t, errors.Is(err, ErrOccurrenceDetached))
}

func TestApplyTransition_MissedRequiresPastDueDate(t *testing.T) {
	e := newTestEngine()
	tasks := []models.Task{seriesRoot(utc(2024, 1, 20), daily()), oneOff("tax", utc(2024, 1, 10))}

	out, err := e.ApplyTransition(tasks, "root", models.TaskStatusMissed, nil)
	assert.True(t, errors.Is(err, ErrNotOverdue))
	assert.Equal(t, tasks, out)

	_, err = e.ApplyTransition(tasks, "tax", models.TaskStatusMissed, nil)
	assert.True(t, errors.Is(err, ErrNotOverdue), "a task due today is not overdue yet")
}

func TestApplyTransition_Archive(t *testing.T) {
	e := newTestEngine()
	tasks := []models.Task{seriesRoot(utc(2024, 1, 1), daily())}

	archived, err := e.ApplyTransition(tasks, "root", models.TaskStatusArchived, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusArchived, archived[0].Status)

	out, err := e.ApplyTransition(archived, "root", models.TaskStatusCompleted, nil)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Equal(t, archived, out)

	_, err = e.ApplyTransition(archived, "root", models.TaskStatusCompleted, ptr(utc(2024, 1, 3)))
	assert.True(t, errors.Is(err, ErrIllegalTransition))

	restored, err := e.ApplyTransition(archived, "root", models.TaskStatusPlanned, nil)
	require.NoError(t, err)
	assert.Equal(t, tasks, restored)
}

func TestApplyTransition_UnknownTaskIsNoop(t *testing.T) {
	e := newTestEngine()
	tasks := []models.Task{seriesRoot(utc(2024, 1, 1), daily())}

	out, err := e.ApplyTransition(tasks, "gone", models.TaskStatusCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, tasks, out)
}

func TestApplyTransition_InvalidRuleRejected(t *testing.T) {
	e := newTestEngine()
	tasks := []models.Task{seriesRoot(utc(2024, 1, 1), models.RecurrenceRule{
		Frequency:  models.RecurrenceMonthly,
		Interval:   1,
		DayOfMonth: ptr(35),
	})}

	out, err := e.ApplyTransition(tasks, "root", models.TaskStatusCompleted, nil)
	assert.True(t, errors.Is(err, recurrence.ErrInvalidRule))
	assert.Equal(t, tasks, out)
}

func TestApplyTransition_UnknownStatusRejected(t *testing.T) {
	e := newTestEngine()
	tasks := []models.Task{oneOff("tax", utc(2024, 1, 15))}

	out, err := e.ApplyTransition(tasks, "tax", models.TaskStatus("DONE"), nil)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Equal(t, tasks, out)
}

func TestApplyTransition_UndoAfterRescheduleKeepsSchedule(t *testing.T) {
	e := newTestEngine()
	tasks := []models.Task{seriesRoot(utc(2024, 1, 1), daily())}

	completed, err := e.ApplyTransition(tasks, "root", models.TaskStatusCompleted, nil)
	require.NoError(t, err)

	rescheduled := cloneAll(completed)
	for i := range rescheduled {
		if rescheduled[i].ID == "root" {
			rescheduled[i].DueDate = ptr(utc(2024, 1, 5))
		}
	}

	out, err := e.ApplyTransition(rescheduled, "gen-1", models.TaskStatusPlanned, nil)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, utc(2024, 1, 5), *out[0].DueDate)
}

func TestApplyTransition_CompleteFutureOccurrence(t *testing.T) {
	e := newTestEngine()
	root := seriesRoot(utc(2024, 1, 4), daily())
	root.Recurrence.Start = ptr(utc(2024, 1, 1))
	tasks := []models.Task{root}

	ahead, err := e.ApplyTransition(tasks, "root", models.TaskStatusCompleted, ptr(utc(2024, 1, 5)))
	require.NoError(t, err)
	require.Len(t, ahead, 2)
	assert.Equal(t, utc(2024, 1, 4), *find(t, ahead, "root").DueDate)
	assert.Nil(t, find(t, ahead, "gen-1").GeneratedFrom.RootAdvancedTo)

	current, err := e.ApplyTransition(ahead, "root", models.TaskStatusCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, utc(2024, 1, 6), *find(t, current, "root").DueDate, "resolved occurrences are skipped")

	undone, err := e.ApplyTransition(current, "root", models.TaskStatusPlanned, nil)
	require.NoError(t, err)
	assert.Equal(t, ahead, undone)
}

func TestApplyTransition_OtherOccurrenceLeavesRootAlone(t *testing.T) {
	e := newTestEngine()
	tasks := []models.Task{seriesRoot(utc(2024, 1, 10), daily())}
	done, err := e.ApplyTransition(tasks, "root", models.TaskStatusCompleted, nil)
	require.NoError(t, err)
	require.Len(t, done, 2)

	t.Run("planned on an open occurrence is a no-op", func(t *testing.T) {
		out, err := e.ApplyTransition(done, "root", models.TaskStatusPlanned, ptr(utc(2024, 1, 20)))
		require.NoError(t, err)
		assert.Equal(t, done, out)
	})

	for _, to := range []models.TaskStatus{models.TaskStatusInProgress, models.TaskStatusArchived} {
		t.Run(string(to), func(t *testing.T) {
			out, err := e.ApplyTransition(done, "root", to, ptr(utc(2024, 1, 20)))
			assert.ErrorIs(t, err, ErrIllegalTransition)
			assert.Equal(t, done, out)
			assert.Equal(t, models.TaskStatusPlanned, find(t, out, "root").Status)
		})
	}

	t.Run("planned on a resolved occurrence reopens it", func(t *testing.T) {
		ahead, err := e.ApplyTransition(done, "root", models.TaskStatusCompleted, ptr(utc(2024, 1, 13)))
		require.NoError(t, err)
		require.Len(t, ahead, 3)

		out, err := e.ApplyTransition(ahead, "root", models.TaskStatusPlanned, ptr(utc(2024, 1, 13)))
		require.NoError(t, err)
		assert.Equal(t, done, out)
	})
}

func TestApplyTransition_RejectsDatesOffTheGrid(t *testing.T) {
	e := newTestEngine()
	tasks := []models.Task{seriesRoot(utc(2024, 1, 1), models.RecurrenceRule{Frequency: models.RecurrenceWeekly, Interval: 1})}

	out, err := e.ApplyTransition(tasks, "root", models.TaskStatusCompleted, ptr(utc(2024, 1, 3)))
	assert.True(t, errors.Is(err, ErrNotAnOccurrence))
	assert.Equal(t, tasks, out)
}

func TestApplyTransition_HistoryStaysUnique(t *testing.T) {
	e := newTestEngine()
	tasks := []models.Task{seriesRoot(utc(2024, 1, 1), daily())}

	steps := []struct {
		id     string
		status models.TaskStatus
		date   *time.Time
	}{
		{"root", models.TaskStatusCompleted, nil},
		{"root", models.TaskStatusCompleted, ptr(utc(2024, 1, 1))},
		{"root", models.TaskStatusPlanned, nil},
		{"root", models.TaskStatusCompleted, nil},
		{"root", models.TaskStatusMissed, nil},
		{"root", models.TaskStatusCompleted, ptr(utc(2024, 1, 2))},
		{"root", models.TaskStatusMissed, ptr(utc(2024, 1, 1))},
		{"root", models.TaskStatusCompleted, ptr(utc(2024, 1, 5))},
		{"root", models.TaskStatusCompleted, nil},
		{"root", models.TaskStatusCompleted, nil},
	}

	var err error
	for _, s := range steps {
		tasks, err = e.ApplyTransition(tasks, s.id, s.status, s.date)
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for _, task := range tasks {
		if !task.IsHistory() {
			continue
		}
		key := *task.SeriesID + "/" + task.DueDate.Format(time.DateOnly)
		assert.False(t, seen[key], "duplicate history for %s", key)
		seen[key] = true
	}
	assert.Len(t, seen, 5)
	assert.Equal(t, utc(2024, 1, 6), *find(t, tasks, "root").DueDate)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.TaskStatus
		want     bool
	}{
		{models.TaskStatusPlanned, models.TaskStatusInProgress, true},
		{models.TaskStatusPlanned, models.TaskStatusCompleted, true},
		{models.TaskStatusInProgress, models.TaskStatusMissed, true},
		{models.TaskStatusCompleted, models.TaskStatusPlanned, true},
		{models.TaskStatusCompleted, models.TaskStatusMissed, false},
		{models.TaskStatusMissed, models.TaskStatusCompleted, false},
		{models.TaskStatusArchived, models.TaskStatusCompleted, false},
		{models.TaskStatusArchived, models.TaskStatusPlanned, true},
		{models.TaskStatusArchived, models.TaskStatusArchived, true},
		{models.TaskStatus("DONE"), models.TaskStatusPlanned, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s to %s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}
