package lifecycle

import "github.com/yukikurage/task-planner/internal/models"

// transitions lists, per status, the statuses a task may move to. Moving to
// the current status is always allowed and does nothing.
var transitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskStatusPlanned: {
		models.TaskStatusInProgress,
		models.TaskStatusCompleted,
		models.TaskStatusMissed,
		models.TaskStatusArchived,
	},
	models.TaskStatusInProgress: {
		models.TaskStatusPlanned,
		models.TaskStatusCompleted,
		models.TaskStatusMissed,
		models.TaskStatusArchived,
	},
	models.TaskStatusCompleted: {models.TaskStatusPlanned, models.TaskStatusArchived},
	models.TaskStatusMissed:    {models.TaskStatusPlanned, models.TaskStatusArchived},
	models.TaskStatusArchived:  {models.TaskStatusPlanned},
}

// CanTransition reports whether a task in status from may move to status to.
func CanTransition(from, to models.TaskStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
