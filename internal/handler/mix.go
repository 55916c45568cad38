package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/duetly/api/internal/middleware"
	"github.com/duetly/api/internal/model"
	"github.com/duetly/api/internal/service"
	"github.com/duetly/api/pkg/response"
)

type MixHandler struct {
	service   *service.SessionService
	validator *validator.Validate
}

func NewMixHandler(svc *service.SessionService, v *validator.Validate) *MixHandler {
	return &MixHandler{
		service:   svc,
		validator: v,
	}
}

// Get handles GET /api/sessions/:sessionId/mix
func (h *MixHandler) Get(c *fiber.Ctx) error {
	mix, err := h.service.GetMix(middleware.GetUserID(c), c.Params("sessionId"))
	if err != nil {
		return mapSessionError(c, err)
	}
	return response.OK(c, mix)
}

// Update handles PATCH /api/sessions/:sessionId/mix
func (h *MixHandler) Update(c *fiber.Ctx) error {
	var req model.UpdateMixRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	mix, err := h.service.UpdateMix(middleware.GetUserID(c), c.Params("sessionId"), &req)
	if err != nil {
		return mapSessionError(c, err)
	}
	return response.OK(c, mix)
}
