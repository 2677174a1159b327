package handler

import (
	"context"

	"foresight/internal/domain"
	"foresight/internal/job"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type JobReader interface {
	RecentJobs(ctx context.Context, limit int) ([]domain.Job, error)
}

type ChannelTrigger interface {
	TriggerChannel(channelID int64, postID string) (*job.TaskHandle, error)
}

type QuoteReader interface {
	GetQuote(ctx context.Context, symbol string) (*domain.PriceSnapshot, error)
}

type Handler struct {
	tracer  trace.Tracer
	jobs    JobReader
	trigger ChannelTrigger
	quotes  QuoteReader
}

func New(tracer trace.Tracer, jobs JobReader, trigger ChannelTrigger, quotes QuoteReader) *Handler {
	return &Handler{
		tracer:  tracer,
		jobs:    jobs,
		trigger: trigger,
		quotes:  quotes,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/jobs", h.RecentJobs)
	r.GET("/api/quotes/:symbol", h.GetQuote)
	r.POST("/api/channels/:id/collect", h.TriggerCollection)
}
