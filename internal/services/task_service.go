package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yukikurage/task-planner/internal/constants"
	"github.com/yukikurage/task-planner/internal/lifecycle"
	"github.com/yukikurage/task-planner/internal/models"
	"github.com/yukikurage/task-planner/internal/recurrence"
	"github.com/yukikurage/task-planner/internal/replication"
	"github.com/yukikurage/task-planner/internal/repository"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrTitleRequired   = errors.New("title is required")
	ErrTitleEmpty      = errors.New("title cannot be empty")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidRange    = errors.New("invalid date range")
	ErrNoOccurrences   = errors.New("recurrence has no occurrences")
)

const publishTimeout = 5 * time.Second

// PlannerService owns the in-memory task collection. Every change goes
// through the lifecycle engine under one lock, then is handed to the
// persister and published to the other instances.
type PlannerService struct {
	mu    sync.Mutex
	tasks []models.Task
	// pubMu keeps publishes in commit order without holding mu.
	pubMu sync.Mutex

	engine      *lifecycle.Engine
	repo        repository.TaskRepository
	persister   *Persister
	broadcaster replication.Broadcaster
	origin      string
	loc         *time.Location
	logger      *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewPlannerService creates a new PlannerService. broadcaster may be nil for
// a single instance.
func NewPlannerService(engine *lifecycle.Engine, repo repository.TaskRepository, persister *Persister, broadcaster replication.Broadcaster, loc *time.Location, logger *slog.Logger) *PlannerService {
	return &PlannerService{
		engine:      engine,
		repo:        repo,
		persister:   persister,
		broadcaster: broadcaster,
		origin:      uuid.NewString(),
		loc:         loc,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	Status   *models.TaskStatus
	SeriesID *string
	Page     int
	PageSize int
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    models.TaskPriority
	DueDate     *time.Time
	Recurrence  models.RecurrenceRule
}

// CalendarView is everything due inside a date range: stored tasks plus the
// virtual occurrences of recurring series.
type CalendarView struct {
	From        time.Time
	To          time.Time
	Tasks       []models.Task
	Occurrences []recurrence.OccurrenceView
	// Skipped holds the ids of series roots whose rule is invalid. They
	// contribute no virtual occurrences.
	Skipped []string
}

// Location returns the zone calendar days are evaluated in.
func (s *PlannerService) Location() *time.Location {
	return s.loc
}

// Load replaces the in-memory collection with the stored one
func (s *PlannerService) Load(ctx context.Context) error {
	tasks, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()
	s.logger.Info("loaded tasks", slog.Int("count", len(tasks)))
	return nil
}

// Snapshot returns a deep copy of the current collection
func (s *PlannerService) Snapshot() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTasks(s.tasks)
}

// GetTask returns a stored task
func (s *PlannerService) GetTask(id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			t := s.tasks[i].Clone()
			return &t, nil
		}
	}
	return nil, ErrTaskNotFound
}

// ListTasks returns stored tasks ordered by due date, undated ones last
func (s *PlannerService) ListTasks(input ListTasksInput) ([]models.Task, int64) {
	s.mu.Lock()
	matched := make([]models.Task, 0, len(s.tasks))
	for i := range s.tasks {
		t := s.tasks[i]
		if input.Status != nil && t.Status != *input.Status {
			continue
		}
		if input.SeriesID != nil && t.ID != *input.SeriesID && (t.SeriesID == nil || *t.SeriesID != *input.SeriesID) {
			continue
		}
		matched = append(matched, t.Clone())
	}
	s.mu.Unlock()

	sortByDueDate(matched)
	total := int64(len(matched))
	if input.Page > 0 && input.PageSize > 0 {
		offset := (input.Page - 1) * input.PageSize
		if offset >= len(matched) {
			return []models.Task{}, total
		}
		end := offset + input.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[offset:end]
	}
	return matched, total
}

// CreateTask validates input and adds a new task. A recurring task gets its
// rule anchored at the first occurrence.
func (s *PlannerService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, input.Priority)
	}

	now := s.now()
	task := models.Task{
		ID:          s.newID(),
		Title:       title,
		Description: input.Description,
		Status:      models.TaskStatusPlanned,
		Priority:    input.Priority,
		Recurrence:  input.Recurrence.Clone(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.DueDate != nil {
		due := *input.DueDate
		task.DueDate = &due
	}
	if task.Recurrence.IsRecurring() {
		if err := s.anchorSeries(&task); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	next := make([]models.Task, len(s.tasks), len(s.tasks)+1)
	copy(next, s.tasks)
	next = append(next, task)
	s.commit(ctx, next)

	s.logger.Info("task created", slog.String("task_id", task.ID), slog.Bool("recurring", task.Recurrence.IsRecurring()))
	created := task.Clone()
	return &created, nil
}

// anchorSeries pins the rule start and moves the due date onto the first
// occurrence of the rule.
func (s *PlannerService) anchorSeries(task *models.Task) error {
	if err := recurrence.Validate(task.Recurrence); err != nil {
		return err
	}
	rule := &task.Recurrence
	switch {
	case rule.Start == nil && task.DueDate == nil:
		start := task.CreatedAt.In(s.loc)
		rule.Start = &start
	case rule.Start == nil:
		start := *task.DueDate
		rule.Start = &start
	}
	if task.DueDate == nil || task.DueDate.Before(*rule.Start) {
		due := *rule.Start
		task.DueDate = &due
	}

	if !recurrence.MatchesRule(*task, *task.DueDate) {
		next, err := recurrence.NextDueDate(*rule.Start, *rule, *task.DueDate)
		if err != nil {
			return err
		}
		task.DueDate = &next
	}
	if !recurrence.MatchesRule(*task, *task.DueDate) {
		return ErrNoOccurrences
	}
	return nil
}

// DeleteTask removes a task. Deleting a series root removes every record of
// the series with it.
func (s *PlannerService) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	next := make([]models.Task, 0, len(s.tasks))
	found := false
	for i := range s.tasks {
		t := s.tasks[i]
		if t.ID == id {
			found = true
			continue
		}
		if t.SeriesID != nil && *t.SeriesID == id {
			continue
		}
		next = append(next, t)
	}
	if !found {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	s.commit(ctx, next)
	return nil
}

// ApplyTransition moves task id to status to. For a series root,
// occurrenceDate picks the occurrence; nil means the current one. It returns
// the task after the move, or its series root when the task was retracted.
func (s *PlannerService) ApplyTransition(ctx context.Context, id string, to models.TaskStatus, occurrenceDate *time.Time) (*models.Task, error) {
	s.mu.Lock()
	before := indexOf(s.tasks, id)
	if before < 0 {
		s.mu.Unlock()
		return nil, ErrTaskNotFound
	}
	seriesID := s.tasks[before].SeriesID

	next, err := s.engine.ApplyTransition(s.tasks, id, to, occurrenceDate)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	result := lookup(next, id)
	if result == nil && seriesID != nil {
		result = lookup(next, *seriesID)
	}
	if len(next) == len(s.tasks) && sameTasks(next, s.tasks) {
		s.mu.Unlock()
		return result, nil
	}
	s.commit(ctx, next)

	s.logger.Info("task transitioned", slog.String("task_id", id), slog.String("status", string(to)))
	return result, nil
}

// TransitionOccurrence applies to to the occurrence named by occurrenceID,
// which is either a stored task id or a virtual occurrence id.
func (s *PlannerService) TransitionOccurrence(ctx context.Context, occurrenceID string, to models.TaskStatus) (*models.Task, error) {
	ref, err := recurrence.ParseOccurrenceID(occurrenceID, s.loc)
	if err != nil {
		return nil, err
	}
	switch r := ref.(type) {
	case recurrence.VirtualRef:
		s.mu.Lock()
		i := indexOf(s.tasks, r.RootID)
		if i < 0 {
			s.mu.Unlock()
			return nil, ErrTaskNotFound
		}
		if !s.tasks[i].IsSeriesRoot() {
			s.mu.Unlock()
			return nil, lifecycle.ErrNotRecurring
		}
		date := s.virtualDate(r)
		s.mu.Unlock()
		return s.ApplyTransition(ctx, r.RootID, to, &date)
	default:
		return s.ApplyTransition(ctx, ref.ID(), to, nil)
	}
}

// EditOccurrence applies patch to the occurrence named by occurrenceID. A
// virtual occurrence is detached into an exception unless the patch only
// carries a comment; a stored task is edited in place.
func (s *PlannerService) EditOccurrence(ctx context.Context, occurrenceID string, patch lifecycle.OccurrencePatch) (*models.Task, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, ErrTitleEmpty
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, *patch.Priority)
	}
	ref, err := recurrence.ParseOccurrenceID(occurrenceID, s.loc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	var next []models.Task
	var resultID string
	switch r := ref.(type) {
	case recurrence.VirtualRef:
		if indexOf(s.tasks, r.RootID) < 0 {
			s.mu.Unlock()
			return nil, ErrTaskNotFound
		}
		date := s.virtualDate(r)
		next, err = s.engine.EditOccurrence(s.tasks, r.RootID, date, patch)
		resultID = r.RootID
		if err == nil && !patch.OnlyComment() {
			resultID = exceptionFor(next, r.RootID, date)
		}
	default:
		resultID = ref.ID()
		if indexOf(s.tasks, resultID) < 0 {
			s.mu.Unlock()
			return nil, ErrTaskNotFound
		}
		next, err = s.engine.EditTask(s.tasks, resultID, patch)
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	result := lookup(next, resultID)
	s.commit(ctx, next)
	return result, nil
}

// ExcludeOccurrence removes the occurrence named by occurrenceID from its
// series. A stored record of a series is deleted and its date excluded; a
// one-off task is simply deleted.
func (s *PlannerService) ExcludeOccurrence(ctx context.Context, occurrenceID string) error {
	ref, err := recurrence.ParseOccurrenceID(occurrenceID, s.loc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	var next []models.Task
	switch r := ref.(type) {
	case recurrence.VirtualRef:
		if indexOf(s.tasks, r.RootID) < 0 {
			s.mu.Unlock()
			return ErrTaskNotFound
		}
		next, err = s.engine.ExcludeOccurrence(s.tasks, r.RootID, s.virtualDate(r))
	default:
		idx := indexOf(s.tasks, ref.ID())
		if idx < 0 {
			s.mu.Unlock()
			return ErrTaskNotFound
		}
		next, err = s.excludeStored(s.tasks[idx])
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.commit(ctx, next)
	return nil
}

func (s *PlannerService) excludeStored(t models.Task) ([]models.Task, error) {
	switch {
	case t.IsSeriesRoot():
		if t.DueDate == nil {
			return nil, fmt.Errorf("%w: %s", lifecycle.ErrNotAnOccurrence, t.ID)
		}
		return s.engine.ExcludeOccurrence(s.tasks, t.ID, *t.DueDate)
	case t.SeriesID != nil:
		rest := without(s.tasks, t.ID)
		date, ok := recurrence.OccurrenceDateOf(t)
		if !ok || indexOf(rest, *t.SeriesID) < 0 {
			return rest, nil
		}
		return s.engine.ExcludeOccurrence(rest, *t.SeriesID, date)
	default:
		return without(s.tasks, t.ID), nil
	}
}

// Calendar returns the stored tasks due between from and to, inclusive, and
// the virtual occurrences on those days.
func (s *PlannerService) Calendar(from, to time.Time) (*CalendarView, error) {
	from, to = startOfDay(from, s.loc), startOfDay(to, s.loc)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, to.Format(constants.DateLayout), from.Format(constants.DateLayout))
	}
	if to.Sub(from) > constants.MaxCalendarDays*24*time.Hour {
		return nil, fmt.Errorf("%w: at most %d days", ErrInvalidRange, constants.MaxCalendarDays)
	}

	snapshot := s.Snapshot()
	end := to.AddDate(0, 0, 1)
	view := &CalendarView{From: from, To: to, Tasks: []models.Task{}}
	for _, t := range snapshot {
		if t.DueDate == nil || t.DueDate.Before(from) || !t.DueDate.Before(end) {
			continue
		}
		view.Tasks = append(view.Tasks, t)
	}
	sortByDueDate(view.Tasks)

	// Noon keeps each day on the same calendar date in nearby series zones.
	occurrences, err := recurrence.Project(snapshot, recurrence.DateRange{From: from.Add(12 * time.Hour), To: to.Add(12 * time.Hour)})
	if err != nil {
		s.logger.Warn("skipped series with invalid rules", slog.Any("error", err))
		for _, t := range snapshot {
			if t.IsSeriesRoot() && recurrence.Validate(t.Recurrence) != nil {
				view.Skipped = append(view.Skipped, t.ID)
			}
		}
	}
	view.Occurrences = occurrences
	return view, nil
}

// SweepOverdue marks every overdue open task missed.
func (s *PlannerService) SweepOverdue(ctx context.Context) error {
	s.mu.Lock()
	next, err := s.engine.SweepOverdue(s.tasks)
	if len(next) == len(s.tasks) && sameTasks(next, s.tasks) {
		s.mu.Unlock()
		return err
	}
	s.commit(ctx, next)
	return err
}

// ReplaceSnapshot adopts a snapshot committed by another instance. The
// latest message wins. The sender persists its own snapshot.
func (s *PlannerService) ReplaceSnapshot(msg replication.Message) {
	if msg.Origin == s.origin {
		return
	}
	s.mu.Lock()
	s.tasks = msg.Tasks
	s.mu.Unlock()
	s.logger.Info("adopted replicated snapshot",
		slog.String("origin", msg.Origin),
		slog.Int("count", len(msg.Tasks)),
		slog.Time("sent_at", msg.SentAt),
	)
}

// Listen follows snapshots of the other instances until ctx is done.
func (s *PlannerService) Listen(ctx context.Context) error {
	if s.broadcaster == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.broadcaster.Subscribe(ctx, s.ReplaceSnapshot)
}

// commit installs next as the current collection and releases mu, which the
// caller must hold. The snapshot is then persisted and published.
func (s *PlannerService) commit(ctx context.Context, next []models.Task) {
	s.tasks = next
	if s.persister != nil {
		s.persister.Notify(next)
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Unlock()

	if s.broadcaster == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	msg := replication.Message{Origin: s.origin, Tasks: next, SentAt: s.now()}
	if err := s.broadcaster.Publish(ctx, msg); err != nil {
		s.logger.Warn("failed to publish snapshot", slog.Any("error", err))
	}
}

func indexOf(tasks []models.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func lookup(tasks []models.Task, id string) *models.Task {
	if i := indexOf(tasks, id); i >= 0 {
		t := tasks[i].Clone()
		return &t
	}
	return nil
}

func without(tasks []models.Task, id string) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for i := range tasks {
		if tasks[i].ID != id {
			out = append(out, tasks[i])
		}
	}
	return out
}

// virtualDate places the calendar day of r in the location of its series,
// which is where the day was rendered. The caller must hold mu.
func (s *PlannerService) virtualDate(r recurrence.VirtualRef) time.Time {
	y, m, d := r.Date.Date()
	loc := s.loc
	if i := indexOf(s.tasks, r.RootID); i >= 0 {
		loc = recurrence.Anchor(s.tasks[i]).Location()
	}
	return time.Date(y, m, d, 12, 0, 0, 0, loc)
}

// exceptionFor finds the exception standing for root's occurrence on date.
func exceptionFor(tasks []models.Task, rootID string, date time.Time) string {
	loc := date.Location()
	for i := range tasks {
		t := tasks[i]
		if !t.IsRecurringException || t.SeriesID == nil || *t.SeriesID != rootID {
			continue
		}
		if d, ok := recurrence.OccurrenceDateOf(t); ok && recurrence.SameDay(d, date, loc) {
			return t.ID
		}
	}
	return rootID
}

// sameTasks reports whether a and b hold the very same records, which is how
// the engine signals that nothing changed.
func sameTasks(a, b []models.Task) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	return &a[0] == &b[0]
}

func sortByDueDate(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].DueDate, tasks[j].DueDate
		switch {
		case a == nil && b == nil:
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
	})
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func cloneTasks(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}
