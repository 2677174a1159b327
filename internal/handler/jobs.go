package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultJobsLimit = 20

// RecentJobs returns the latest pipeline job records, newest first.
func (h *Handler) RecentJobs(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.recent-jobs")
	defer span.End()

	limit := defaultJobsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	jobs, err := h.jobs.RecentJobs(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
