package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/duetly/api/internal/engine"
	"github.com/duetly/api/internal/model"
	"github.com/duetly/api/pkg/response"
)

type LayoutHandler struct{}

func NewLayoutHandler() *LayoutHandler {
	return &LayoutHandler{}
}

// Get handles GET /api/layouts/:style
func (h *LayoutHandler) Get(c *fiber.Ctx) error {
	style := model.DuetStyle(c.Params("style"))
	if !style.IsValid() {
		return response.ValidationError(c, "Unknown duet style", fiber.Map{"style": c.Params("style")})
	}
	return response.OK(c, engine.LayoutFor(style))
}

// List handles GET /api/layouts
func (h *LayoutHandler) List(c *fiber.Ctx) error {
	styles := []model.DuetStyle{model.StyleSideBySide, model.StyleReactRespond, model.StylePictureInPicture}
	layouts := make([]model.CompositionDescriptor, 0, len(styles))
	for _, s := range styles {
		layouts = append(layouts, engine.LayoutFor(s))
	}
	return response.OK(c, fiber.Map{"layouts": layouts})
}
