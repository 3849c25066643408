package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-planner/internal/constants"
	"github.com/yukikurage/task-planner/internal/dto"
	apierrors "github.com/yukikurage/task-planner/internal/errors"
	"github.com/yukikurage/task-planner/internal/services"
)

type CalendarHandler struct {
	planner *services.PlannerService
}

func NewCalendarHandler(planner *services.PlannerService) *CalendarHandler {
	return &CalendarHandler{planner: planner}
}

// GetCalendar returns stored tasks and virtual occurrences between the from
// and to days, inclusive
func (h *CalendarHandler) GetCalendar(c *gin.Context) {
	loc := h.planner.Location()
	from, err := time.ParseInLocation(constants.DateLayout, c.Query("from"), loc)
	if err != nil {
		apierrors.BadRequest(c, "from must be YYYY-MM-DD")
		return
	}
	to, err := time.ParseInLocation(constants.DateLayout, c.Query("to"), loc)
	if err != nil {
		apierrors.BadRequest(c, "to must be YYYY-MM-DD")
		return
	}

	view, err := h.planner.Calendar(from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.CalendarResponse{
		From:          view.From.Format(constants.DateLayout),
		To:            view.To.Format(constants.DateLayout),
		Tasks:         dto.ToTaskDTOs(view.Tasks),
		Occurrences:   make([]dto.OccurrenceDTO, len(view.Occurrences)),
		SkippedSeries: view.Skipped,
	}
	for i, o := range view.Occurrences {
		resp.Occurrences[i] = dto.ToOccurrenceDTO(o)
	}

	c.JSON(http.StatusOK, resp)
}
