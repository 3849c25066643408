package models

import (
	"time"
)

type TaskStatus string

const (
	TaskStatusPlanned    TaskStatus = "PLANNED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusMissed     TaskStatus = "MISSED"
	TaskStatusArchived   TaskStatus = "ARCHIVED"
)

// TaskStatuses lists every status a task can hold.
var TaskStatuses = []TaskStatus{
	TaskStatusPlanned,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusMissed,
	TaskStatusArchived,
}

// Valid reports whether s is one of the known statuses
func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Open reports whether the task still awaits work
func (s TaskStatus) Open() bool {
	return s == TaskStatusPlanned || s == TaskStatusInProgress
}

// Resolved reports whether the status freezes an occurrence into history
func (s TaskStatus) Resolved() bool {
	return s == TaskStatusCompleted || s == TaskStatusMissed
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
)

// Valid reports whether p is one of the known priorities
func (p TaskPriority) Valid() bool {
	return p == TaskPriorityLow || p == TaskPriorityMedium || p == TaskPriorityHigh
}

// Comment is a note attached to a task. Comments on a series root are shared
// by every occurrence of the series.
type Comment struct {
	ID             string     `json:"id"`
	Text           string     `json:"text"`
	OccurrenceDate *time.Time `json:"occurrence_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Generation records which occurrence of which series a generated record
// stands for, and what the series root looked like before the record was
// generated. Undo uses it to find the exact record to retract.
type Generation struct {
	SeriesID         string     `json:"series_id"`
	OccurrenceDate   time.Time  `json:"occurrence_date"`
	PriorRootStatus  TaskStatus `json:"prior_root_status,omitempty"`
	PriorRootDueDate *time.Time `json:"prior_root_due_date,omitempty"`
	RootAdvancedTo   *time.Time `json:"root_advanced_to,omitempty"`
	AnchorPinned     bool       `json:"anchor_pinned,omitempty"`
}

type Task struct {
	ID                   string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SeriesID             *string        `gorm:"type:varchar(64);index" json:"series_id,omitempty"`
	Title                string         `gorm:"not null" json:"title"`
	Description          string         `gorm:"type:text" json:"description"`
	Status               TaskStatus     `gorm:"type:varchar(20);not null;default:'PLANNED';index" json:"status"`
	Priority             TaskPriority   `gorm:"type:varchar(10);not null;default:'MEDIUM'" json:"priority"`
	DueDate              *time.Time     `gorm:"index" json:"due_date"`
	Recurrence           RecurrenceRule `gorm:"serializer:json;type:text" json:"recurrence"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	ExcludedDates        []time.Time    `gorm:"serializer:json;type:text" json:"excluded_dates,omitempty"`
	IsRecurringException bool           `gorm:"not null;default:false" json:"is_recurring_exception"`
	GeneratedFrom        *Generation    `gorm:"serializer:json;type:text" json:"generated_from,omitempty"`
	Comments             []Comment      `gorm:"serializer:json;type:text" json:"comments,omitempty"`
}

// IsSeriesRoot reports whether the task is the live record of a recurring series
func (t *Task) IsSeriesRoot() bool {
	return t.Recurrence.IsRecurring() && t.SeriesID == nil
}

// IsHistory reports whether the task is a frozen completed or missed occurrence
func (t *Task) IsHistory() bool {
	return t.SeriesID != nil && !t.Recurrence.IsRecurring() && t.Status.Resolved()
}

// Clone returns a deep copy so that edits on the copy never leak into a
// snapshot that shares the original.
func (t Task) Clone() Task {
	out := t
	out.SeriesID = cloneString(t.SeriesID)
	out.DueDate = cloneTime(t.DueDate)
	out.CompletedAt = cloneTime(t.CompletedAt)
	out.Recurrence = t.Recurrence.Clone()
	if t.ExcludedDates != nil {
		out.ExcludedDates = append([]time.Time(nil), t.ExcludedDates...)
	}
	if t.Comments != nil {
		out.Comments = make([]Comment, len(t.Comments))
		for i, c := range t.Comments {
			c.OccurrenceDate = cloneTime(c.OccurrenceDate)
			out.Comments[i] = c
		}
	}
	if t.GeneratedFrom != nil {
		gen := *t.GeneratedFrom
		gen.PriorRootDueDate = cloneTime(gen.PriorRootDueDate)
		gen.RootAdvancedTo = cloneTime(gen.RootAdvancedTo)
		out.GeneratedFrom = &gen
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
