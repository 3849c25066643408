package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-planner/internal/dto"
	apierrors "github.com/yukikurage/task-planner/internal/errors"
	"github.com/yukikurage/task-planner/internal/lifecycle"
	"github.com/yukikurage/task-planner/internal/models"
	"github.com/yukikurage/task-planner/internal/services"
)

// OccurrenceHandler acts on single occurrences, addressed either by a stored
// task id or by a virtual id of the form root@YYYY-MM-DD.
type OccurrenceHandler struct {
	planner *services.PlannerService
}

func NewOccurrenceHandler(planner *services.PlannerService) *OccurrenceHandler {
	return &OccurrenceHandler{planner: planner}
}

// EditOccurrence changes one occurrence without touching the rest of its series
func (h *OccurrenceHandler) EditOccurrence(c *gin.Context) {
	var req dto.EditOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}
	if req.Empty() {
		apierrors.BadRequest(c, "Nothing to change")
		return
	}

	patch := lifecycle.OccurrencePatch{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Comment:     req.Comment,
	}
	if req.Priority != nil {
		priority := models.TaskPriority(*req.Priority)
		patch.Priority = &priority
	}

	task, err := h.planner.EditOccurrence(c.Request.Context(), c.Param("occurrence_id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// ExcludeOccurrence deletes a single occurrence
func (h *OccurrenceHandler) ExcludeOccurrence(c *gin.Context) {
	if err := h.planner.ExcludeOccurrence(c.Request.Context(), c.Param("occurrence_id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// TransitionOccurrence completes, misses or restores a single occurrence
func (h *OccurrenceHandler) TransitionOccurrence(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	task, err := h.planner.TransitionOccurrence(c.Request.Context(), c.Param("occurrence_id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	if task == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}
