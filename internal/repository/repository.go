package repository

import (
	"context"

	"github.com/yukikurage/task-planner/internal/models"
)

// TaskRepository defines the interface for task data access. The planner
// keeps the whole collection in memory, so the store only ever reads and
// writes complete snapshots.
type TaskRepository interface {
	// Load returns every stored task, oldest first
	Load(ctx context.Context) ([]models.Task, error)

	// Save replaces the stored collection with tasks
	Save(ctx context.Context, tasks []models.Task) error
}
