package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-planner/internal/constants"
	apierrors "github.com/yukikurage/task-planner/internal/errors"
	"github.com/yukikurage/task-planner/internal/models"
	"github.com/yukikurage/task-planner/internal/services"
)

// TaskFinder looks up a stored task by id.
type TaskFinder interface {
	GetTask(id string) (*models.Task, error)
}

// RequireTask loads the task named by the :id route parameter and stores it
// in the context.
func RequireTask(finder TaskFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("id")
		if taskID == "" {
			apierrors.BadRequest(c, "Invalid task ID")
			c.Abort()
			return
		}

		task, err := finder.GetTask(taskID)
		if err != nil {
			if errors.Is(err, services.ErrTaskNotFound) {
				apierrors.NotFound(c, "Task not found")
			} else {
				apierrors.InternalError(c, "Failed to load task")
			}
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyTask, *task)
		c.Next()
	}
}

// GetTask retrieves the task stored by RequireTask
func GetTask(c *gin.Context) (models.Task, bool) {
	value, exists := c.Get(constants.ContextKeyTask)
	if !exists {
		return models.Task{}, false
	}
	task, ok := value.(models.Task)
	return task, ok
}
