package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-planner/internal/constants"
)

// PaginationParams is the page window requested through ?page= and ?limit=
type PaginationParams struct {
	Page  int
	Limit int
}

// PaginationResponse represents the pagination metadata in API responses
type PaginationResponse struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// GetPaginationParams reads the page window from the query string. Missing or
// malformed values fall back to the first page of DefaultPageSize tasks and
// an oversized limit is capped at MaxPageSize.
func GetPaginationParams(c *gin.Context) PaginationParams {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	switch {
	case err != nil || limit < constants.MinPageSize:
		limit = constants.DefaultPageSize
	case limit > constants.MaxPageSize:
		limit = constants.MaxPageSize
	}

	return PaginationParams{Page: page, Limit: limit}
}

// NewPaginationResponse describes the window p over total matching tasks
func NewPaginationResponse(p PaginationParams, total int64) PaginationResponse {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return PaginationResponse{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
	}
}
