package dto

import (
	"time"

	"github.com/yukikurage/task-planner/internal/constants"
	"github.com/yukikurage/task-planner/internal/models"
	"github.com/yukikurage/task-planner/internal/recurrence"
	"github.com/yukikurage/task-planner/internal/utils"
)

// RecurrenceDTO represents a recurrence rule in requests and responses
type RecurrenceDTO struct {
	Frequency    models.RecurrenceFrequency `json:"frequency" binding:"omitempty,oneof=DAILY WEEKLY MONTHLY QUARTERLY YEARLY"`
	Interval     int                        `json:"interval" binding:"gte=0"`
	Weekdays     []int                      `json:"weekdays,omitempty" binding:"omitempty,dive,min=0,max=6"`
	DayOfMonth   *int                       `json:"day_of_month,omitempty"`
	Nth          *int                       `json:"nth,omitempty"`
	NthWeekday   *int                       `json:"nth_weekday,omitempty"`
	ActiveMonths []int                      `json:"active_months,omitempty" binding:"omitempty,dive,min=0,max=11"`
	Start        *time.Time                 `json:"start,omitempty"`
	End          *time.Time                 `json:"end,omitempty"`
}

// CommentDTO represents a comment in API responses
type CommentDTO struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	OccurrenceDate *string   `json:"occurrence_date,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TaskDTO represents a stored task in API responses
type TaskDTO struct {
	ID                   string              `json:"id"`
	SeriesID             *string             `json:"series_id,omitempty"`
	Title                string              `json:"title"`
	Description          string              `json:"description"`
	Status               models.TaskStatus   `json:"status"`
	Priority             models.TaskPriority `json:"priority"`
	DueDate              *time.Time          `json:"due_date"`
	Recurrence           *RecurrenceDTO      `json:"recurrence,omitempty"`
	ExcludedDates        []string            `json:"excluded_dates,omitempty"`
	IsRecurringException bool                `json:"is_recurring_exception"`
	OccurrenceDate       *string             `json:"occurrence_date,omitempty"`
	Comments             []CommentDTO        `json:"comments,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
	CompletedAt          *time.Time          `json:"completed_at,omitempty"`
}

// OccurrenceDTO represents a virtual occurrence in calendar responses
type OccurrenceDTO struct {
	ID          string              `json:"id"`
	RootID      string              `json:"root_id"`
	Date        string              `json:"date"`
	DueDate     time.Time           `json:"due_date"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Priority    models.TaskPriority `json:"priority"`
	Status      models.TaskStatus   `json:"status"`
	Virtual     bool                `json:"virtual"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO                `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// CalendarResponse lists everything due inside a range of days
type CalendarResponse struct {
	From        string          `json:"from"`
	To          string          `json:"to"`
	Tasks       []TaskDTO       `json:"tasks"`
	Occurrences []OccurrenceDTO `json:"occurrences"`
	// SkippedSeries lists series whose invalid rule kept them off the calendar
	SkippedSeries []string `json:"skipped_series,omitempty"`
}

// Requests

type CreateTaskRequest struct {
	Title       string         `json:"title" binding:"required"`
	Description string         `json:"description"`
	Priority    string         `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH"`
	DueDate     *time.Time     `json:"due_date"`
	Recurrence  *RecurrenceDTO `json:"recurrence"`
}

// TransitionRequest moves a task or occurrence to another status.
// OccurrenceDate (YYYY-MM-DD) picks an occurrence of a series root.
type TransitionRequest struct {
	Status         models.TaskStatus `json:"status" binding:"required"`
	OccurrenceDate *string           `json:"occurrence_date"`
}

type EditOccurrenceRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH"`
	DueDate     *time.Time `json:"due_date"`
	Comment     *string    `json:"comment"`
}

// Empty reports whether the request changes nothing
func (r EditOccurrenceRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.Priority == nil && r.DueDate == nil && r.Comment == nil
}

// Conversion functions

// ToModel converts the DTO into a recurrence rule
func (r *RecurrenceDTO) ToModel() models.RecurrenceRule {
	if r == nil {
		return models.RecurrenceRule{}
	}
	return models.RecurrenceRule{
		Frequency:    r.Frequency,
		Interval:     r.Interval,
		Weekdays:     r.Weekdays,
		DayOfMonth:   r.DayOfMonth,
		Nth:          r.Nth,
		NthWeekday:   r.NthWeekday,
		ActiveMonths: r.ActiveMonths,
		Start:        r.Start,
		End:          r.End,
	}
}

// ToRecurrenceDTO converts a rule, returning nil for a task that does not recur
func ToRecurrenceDTO(rule models.RecurrenceRule) *RecurrenceDTO {
	if !rule.IsRecurring() {
		return nil
	}
	return &RecurrenceDTO{
		Frequency:    rule.Frequency,
		Interval:     rule.Interval,
		Weekdays:     rule.Weekdays,
		DayOfMonth:   rule.DayOfMonth,
		Nth:          rule.Nth,
		NthWeekday:   rule.NthWeekday,
		ActiveMonths: rule.ActiveMonths,
		Start:        rule.Start,
		End:          rule.End,
	}
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:                   task.ID,
		SeriesID:             task.SeriesID,
		Title:                task.Title,
		Description:          task.Description,
		Status:               task.Status,
		Priority:             task.Priority,
		DueDate:              task.DueDate,
		Recurrence:           ToRecurrenceDTO(task.Recurrence),
		IsRecurringException: task.IsRecurringException,
		CreatedAt:            task.CreatedAt,
		UpdatedAt:            task.UpdatedAt,
		CompletedAt:          task.CompletedAt,
	}

	for _, d := range task.ExcludedDates {
		dto.ExcludedDates = append(dto.ExcludedDates, d.Format(constants.DateLayout))
	}
	if task.SeriesID != nil {
		if d, ok := recurrence.OccurrenceDateOf(task); ok {
			day := d.Format(constants.DateLayout)
			dto.OccurrenceDate = &day
		}
	}
	for _, c := range task.Comments {
		comment := CommentDTO{ID: c.ID, Text: c.Text, CreatedAt: c.CreatedAt}
		if c.OccurrenceDate != nil {
			day := c.OccurrenceDate.Format(constants.DateLayout)
			comment.OccurrenceDate = &day
		}
		dto.Comments = append(dto.Comments, comment)
	}

	return dto
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	out := make([]TaskDTO, len(tasks))
	for i, t := range tasks {
		out[i] = ToTaskDTO(t)
	}
	return out
}

// ToOccurrenceDTO converts a projected occurrence
func ToOccurrenceDTO(view recurrence.OccurrenceView) OccurrenceDTO {
	return OccurrenceDTO{
		ID:          view.ID(),
		RootID:      view.RootID,
		Date:        view.Date.Format(constants.DateLayout),
		DueDate:     view.Date,
		Title:       view.Title,
		Description: view.Description,
		Priority:    view.Priority,
		Status:      view.Status,
		Virtual:     true,
	}
}
