package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// TriggerCollection runs an immediate collection for one channel, bypassing
// its check interval. Meant to be called right after a channel is created or
// edited. The request blocks until the trigger has run so the caller sees
// the real outcome.
func (h *Handler) TriggerCollection(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-collection")
	defer span.End()

	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	span.SetAttributes(attribute.Int64("channel.id", channelID))

	postID := c.Query("post_id")

	handle, err := h.trigger.TriggerChannel(channelID, postID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	res, err := handle.Wait(ctx)
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}
	if res.Err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": res.Err.Error(), "job_id": res.JobID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":    res.JobID,
		"fetched":   res.Stats.Fetched,
		"collected": res.Stats.Collected,
		"filtered":  res.Stats.Filtered,
		"processed": res.Processed,
	})
}
