package database

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/yukikurage/task-planner/internal/models"
	"gorm.io/gorm"
)

// AddIndexes adds the composite indexes the struct tags cannot express
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		name    string
		columns []string
	}{
		// Occurrence lookups by series and day
		{"idx_tasks_series_due", []string{"series_id", "due_date"}},
		// Overdue sweep scans open tasks by due date
		{"idx_tasks_status_due", []string{"status", "due_date"}},
	}

	migrator := db.Migrator()
	for _, idx := range indexes {
		if migrator.HasIndex(&models.Task{}, idx.name) {
			slog.Debug("Index already exists, skipping", slog.String("index", idx.name))
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON tasks (%s)", idx.name, strings.Join(idx.columns, ", "))
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		slog.Info("Created index", slog.String("index", idx.name), slog.Any("columns", idx.columns))
	}

	return nil
}
