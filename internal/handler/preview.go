package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/duetly/api/internal/middleware"
	"github.com/duetly/api/internal/model"
	"github.com/duetly/api/internal/service"
	"github.com/duetly/api/pkg/response"
)

type PreviewHandler struct {
	service   *service.SessionService
	validator *validator.Validate
}

func NewPreviewHandler(svc *service.SessionService, v *validator.Validate) *PreviewHandler {
	return &PreviewHandler{
		service:   svc,
		validator: v,
	}
}

// Get handles GET /api/sessions/:sessionId/preview
func (h *PreviewHandler) Get(c *fiber.Ctx) error {
	preview, err := h.service.GetPreview(middleware.GetUserID(c), c.Params("sessionId"))
	if err != nil {
		return mapSessionError(c, err)
	}
	return response.OK(c, preview)
}

// BackToEdit handles POST /api/sessions/:sessionId/preview/back
// The preview is hidden but the artifact and metadata remain intact, so
// returning to preview later shows the same take.
func (h *PreviewHandler) BackToEdit(c *fiber.Ctx) error {
	if err := h.service.BackToEdit(middleware.GetUserID(c), c.Params("sessionId")); err != nil {
		return mapSessionError(c, err)
	}
	return response.NoContent(c)
}

// UpdateMetadata handles PATCH /api/sessions/:sessionId/metadata
func (h *PreviewHandler) UpdateMetadata(c *fiber.Ctx) error {
	var req model.UpdateMetadataRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	metadata, err := h.service.UpdateMetadata(middleware.GetUserID(c), c.Params("sessionId"), &req)
	if err != nil {
		return mapSessionError(c, err)
	}
	return response.OK(c, metadata)
}
