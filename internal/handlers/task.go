package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-planner/internal/constants"
	"github.com/yukikurage/task-planner/internal/dto"
	apierrors "github.com/yukikurage/task-planner/internal/errors"
	"github.com/yukikurage/task-planner/internal/middleware"
	"github.com/yukikurage/task-planner/internal/models"
	"github.com/yukikurage/task-planner/internal/recurrence"
	"github.com/yukikurage/task-planner/internal/services"
	"github.com/yukikurage/task-planner/internal/utils"
)

type TaskHandler struct {
	planner *services.PlannerService
}

func NewTaskHandler(planner *services.PlannerService) *TaskHandler {
	return &TaskHandler{
		planner: planner,
	}
}

// ListTasks returns stored tasks ordered by due date.
// Can filter by status and series_id
func (h *TaskHandler) ListTasks(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	input := services.ListTasksInput{
		Page:     params.Page,
		PageSize: params.Limit,
	}

	if s := c.Query("status"); s != "" {
		status := models.TaskStatus(s)
		if !status.Valid() {
			apierrors.BadRequest(c, "Invalid status")
			return
		}
		input.Status = &status
	}
	if seriesID := c.Query("series_id"); seriesID != "" {
		input.SeriesID = &seriesID
	}

	tasks, total := h.planner.ListTasks(input)

	c.JSON(http.StatusOK, dto.TaskListResponse{
		Tasks: dto.ToTaskDTOs(tasks),
		Pagination: utils.NewPaginationResponse(params, total),
	})
}

// GetTask returns a specific task by ID
// Task is already loaded by RequireTask middleware
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(task))
}

// CreateTask creates a new one-off or recurring task
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	task, err := h.planner.CreateTask(c.Request.Context(), services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    models.TaskPriority(req.Priority),
		DueDate:     req.DueDate,
		Recurrence:  req.Recurrence.ToModel(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// DeleteTask deletes a task, and with a series root its whole series
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.planner.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// TransitionTask moves a task to another status. For a series root the
// body may name which occurrence is meant.
func (h *TaskHandler) TransitionTask(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	var (
		task *models.Task
		err  error
	)
	if req.OccurrenceDate != nil {
		date, perr := time.ParseInLocation(constants.DateLayout, *req.OccurrenceDate, h.planner.Location())
		if perr != nil {
			apierrors.BadRequest(c, "occurrence_date must be YYYY-MM-DD")
			return
		}
		ref := recurrence.VirtualRef{RootID: c.Param("id"), Date: date}
		task, err = h.planner.TransitionOccurrence(c.Request.Context(), ref.ID(), req.Status)
	} else {
		task, err = h.planner.ApplyTransition(c.Request.Context(), c.Param("id"), req.Status, nil)
	}
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
