package constants

const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// MaxCalendarDays caps how many days one calendar request may project.
const MaxCalendarDays = 366

// DateLayout is the wire format of calendar days and occurrence dates.
const DateLayout = "2006-01-02"

// ContextKeyTask is the gin context key holding the task loaded for a route.
const ContextKeyTask = "task"
