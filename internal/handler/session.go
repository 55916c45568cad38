package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/duetly/api/internal/engine"
	"github.com/duetly/api/internal/middleware"
	"github.com/duetly/api/internal/model"
	"github.com/duetly/api/internal/service"
	"github.com/duetly/api/pkg/response"
)

type SessionHandler struct {
	service   *service.SessionService
	validator *validator.Validate
}

func NewSessionHandler(svc *service.SessionService, v *validator.Validate) *SessionHandler {
	return &SessionHandler{
		service:   svc,
		validator: v,
	}
}

// Open handles POST /api/sessions
func (h *SessionHandler) Open(c *fiber.Ctx) error {
	var req model.OpenSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	snap, err := h.service.Open(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return mapSessionError(c, err)
	}

	return response.Created(c, snap)
}

// Get handles GET /api/sessions/:sessionId
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	snap, err := h.service.Get(middleware.GetUserID(c), c.Params("sessionId"))
	if err != nil {
		return mapSessionError(c, err)
	}
	return response.OK(c, snap)
}

// Start handles POST /api/sessions/:sessionId/start
func (h *SessionHandler) Start(c *fiber.Ctx) error {
	snap, err := h.service.Start(middleware.GetUserID(c), c.Params("sessionId"))
	if err != nil {
		return mapSessionError(c, err)
	}
	return response.OK(c, snap)
}

// Pause handles POST /api/sessions/:sessionId/pause
func (h *SessionHandler) Pause(c *fiber.Ctx) error {
	snap, err := h.service.Pause(middleware.GetUserID(c), c.Params("sessionId"))
	if err != nil {
		return mapSessionError(c, err)
	}
	return response.OK(c, snap)
}

// Resume handles POST /api/sessions/:sessionId/resume
func (h *SessionHandler) Resume(c *fiber.Ctx) error {
	snap, err := h.service.Resume(middleware.GetUserID(c), c.Params("sessionId"))
	if err != nil {
		return mapSessionError(c, err)
	}
	return response.OK(c, snap)
}

// Stop handles POST /api/sessions/:sessionId/stop
func (h *SessionHandler) Stop(c *fiber.Ctx) error {
	snap, err := h.service.Stop(middleware.GetUserID(c), c.Params("sessionId"))
	if err != nil {
		return mapSessionError(c, err)
	}
	return response.Accepted(c, snap)
}

// Retake handles POST /api/sessions/:sessionId/retake
func (h *SessionHandler) Retake(c *fiber.Ctx) error {
	snap, err := h.service.Retake(c.Context(), middleware.GetUserID(c), c.Params("sessionId"))
	if err != nil {
		return mapSessionError(c, err)
	}
	return response.OK(c, snap)
}

// DeviceLost handles POST /api/sessions/:sessionId/device-lost
func (h *SessionHandler) DeviceLost(c *fiber.Ctx) error {
	var req model.DeviceLostRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	snap, err := h.service.ReportDeviceLost(middleware.GetUserID(c), c.Params("sessionId"), req.Reason)
	if err != nil {
		return mapSessionError(c, err)
	}
	return response.OK(c, snap)
}

// Close handles DELETE /api/sessions/:sessionId
func (h *SessionHandler) Close(c *fiber.Ctx) error {
	if err := h.service.Close(c.Context(), middleware.GetUserID(c), c.Params("sessionId")); err != nil {
		return mapSessionError(c, err)
	}
	return response.NoContent(c)
}

// mapSessionError translates service and engine errors to HTTP responses.
// Device errors carry their classification code so the client can choose
// permission vs hardware messaging.
func mapSessionError(c *fiber.Ctx, err error) error {
	if de, ok := engine.AsDeviceError(err); ok {
		status := fiber.StatusInternalServerError
		switch de.Code {
		case model.DevicePermissionDenied:
			status = fiber.StatusForbidden
		case model.DeviceNotFound:
			status = fiber.StatusNotFound
		case model.DeviceBusy:
			status = fiber.StatusConflict
		}
		return response.DeviceError(c, status, string(de.Code), de.Error())
	}
	if te, ok := engine.AsInvalidTransition(err); ok {
		return response.InvalidState(c, te.Error())
	}
	if errors.Is(err, engine.ErrMixLocked) {
		return response.MixLocked(c)
	}
	if errors.Is(err, engine.ErrSessionClosed) || errors.Is(err, service.ErrSessionNotFound) {
		return response.NotFound(c, "Session not found")
	}
	return response.ServiceError(c, err.Error())
}
