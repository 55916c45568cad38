package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/duetly/api/internal/middleware"
	"github.com/duetly/api/internal/service"
	"github.com/duetly/api/pkg/response"
)

type PublishHandler struct {
	service *service.PublishService
}

func NewPublishHandler(svc *service.PublishService) *PublishHandler {
	return &PublishHandler{service: svc}
}

// Start handles POST /api/sessions/:sessionId/publish
func (h *PublishHandler) Start(c *fiber.Ctx) error {
	result, err := h.service.StartPublish(c.Context(), middleware.GetUserID(c), c.Params("sessionId"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotPublishable):
			return response.InvalidState(c, err.Error())
		case errors.Is(err, service.ErrEmptyCaption):
			return response.ValidationError(c, err.Error(), nil)
		default:
			return mapSessionError(c, err)
		}
	}
	return response.Accepted(c, result)
}

// Status handles GET /api/publish/:jobId
func (h *PublishHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.service.GetJob(c.Context(), jobID)
	if err != nil {
		if err.Error() == "job not found" {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, job)
}
