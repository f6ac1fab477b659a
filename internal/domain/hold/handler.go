package hold

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/holds", h.CreateHold)
	api.DELETE("/holds/:token", h.ReleaseHold)
	api.GET("/slots/:id/hold", h.GetActiveHold)
}

type holdRequest struct {
	SlotID          string `json:"slotId"`
	SessionID       string `json:"sessionId"`
	DurationMinutes int    `json:"durationMinutes"`
}

// CreateHold maps the hold error kinds to distinct statuses so clients can
// tell "pick another slot" (422), "someone else has it" (409), and "retry
// with a valid request" (400/404) apart.
func (h *Handler) CreateHold(c echo.Context) error {
	var req holdRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid slot id")
	}

	held, err := h.svc.Hold(c.Request().Context(), slotID, req.SessionID, req.DurationMinutes)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "slot not found")
		case errors.Is(err, ErrSlotUnavailable):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "slot is not free")
		case errors.Is(err, ErrHoldConflict):
			return echo.NewHTTPError(http.StatusConflict, "slot is held by another session")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "hold acquisition failed")
		}
	}
	return c.JSON(http.StatusCreated, held)
}

func (h *Handler) ReleaseHold(c echo.Context) error {
	token := c.Param("token")
	if err := h.svc.Release(c.Request().Context(), token); err != nil {
		if errors.Is(err, ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "release failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetActiveHold(c echo.Context) error {
	slotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid slot id")
	}

	held, err := h.svc.ActiveHold(c.Request().Context(), slotID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no active hold")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "hold lookup failed")
	}
	return c.JSON(http.StatusOK, held)
}
