package repository

import (
	"context"
	"fmt"

	"github.com/yukikurage/task-planner/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const saveBatchSize = 100

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Load returns every stored task ordered by creation time
func (r *GormTaskRepository) Load(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	return tasks, nil
}

// Save replaces the stored collection with tasks in a single transaction.
// Rows missing from tasks are deleted, the rest are upserted.
func (r *GormTaskRepository) Save(ctx context.Context, tasks []models.Task) error {
	rows := make([]models.Task, len(tasks))
	ids := make([]string, len(tasks))
	for i := range tasks {
		rows[i] = tasks[i].Clone()
		ids[i] = tasks[i].ID
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if len(ids) > 0 {
			stale = tx.Where("id NOT IN ?", ids)
		}
		if err := stale.Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("failed to delete stale tasks: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		err := tx.Clauses(clause.OnConflict{UpdateAll: true}).
			CreateInBatches(&rows, saveBatchSize).Error
		if err != nil {
			return fmt.Errorf("failed to upsert tasks: %w", err)
		}
		return nil
	})
}
