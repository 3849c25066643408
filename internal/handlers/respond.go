package handlers

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/task-planner/internal/errors"
	"github.com/yukikurage/task-planner/internal/lifecycle"
	"github.com/yukikurage/task-planner/internal/recurrence"
	"github.com/yukikurage/task-planner/internal/services"
)

// respondError maps a planner error onto an API error response
func respondError(c *gin.Context, err error) {
	var ruleErr *recurrence.RuleError
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, "Task not found")
	case errors.As(err, &ruleErr):
		apierrors.UnprocessableEntity(c, apierrors.ErrCodeInvalidRule, "Invalid recurrence rule", gin.H{
			"field":  ruleErr.Field,
			"reason": ruleErr.Reason,
		})
	case errors.Is(err, recurrence.ErrInvalidRule), errors.Is(err, services.ErrNoOccurrences):
		apierrors.UnprocessableEntity(c, apierrors.ErrCodeInvalidRule, err.Error(), nil)
	case errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrTitleEmpty),
		errors.Is(err, services.ErrInvalidPriority),
		errors.Is(err, services.ErrInvalidRange),
		errors.Is(err, recurrence.ErrInvalidOccurrenceID):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		apierrors.Conflict(c, apierrors.ErrCodeIllegalTransition, err.Error())
	case errors.Is(err, lifecycle.ErrNotOverdue), errors.Is(err, lifecycle.ErrOccurrenceDetached):
		apierrors.Conflict(c, apierrors.ErrCodeInvalidOperation, err.Error())
	case errors.Is(err, lifecycle.ErrNotRecurring),
		errors.Is(err, lifecycle.ErrNotAnOccurrence),
		errors.Is(err, lifecycle.ErrNotVirtual):
		apierrors.UnprocessableEntity(c, apierrors.ErrCodeInvalidOperation, err.Error(), nil)
	default:
		slog.Error("request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
		apierrors.InternalError(c, "")
	}
}
