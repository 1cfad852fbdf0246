package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/racepool/scoring"
	"github.com/padraicbc/racepool/service"
)

type resultRequest struct {
	Order         []string `json:"order"`
	FirstPlaceTie bool     `json:"firstPlaceTie"`
}

// outcome writes a recompute outcome. A partial write still reports the rows
// that did land, under a 500.
func outcome(c echo.Context, status int, out *service.RaceOutcome, err error) error {
	if err == nil {
		return c.JSON(status, out)
	}
	if errors.Is(err, service.ErrPartialWrite) && out != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error":   err.Error(),
			"outcome": out,
		})
	}
	return httpError(err)
}

// PublishResult records the official result of a race and scores it before
// responding.
func (h *Handler) PublishResult(c echo.Context) error {
	raceID, err := idParam(c, "race")
	if err != nil {
		return err
	}
	var req resultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	out, err := h.scorer.PublishResult(c.Request().Context(), raceID, scoring.OfficialResult{
		Order:         req.Order,
		FirstPlaceTie: req.FirstPlaceTie,
	})
	return outcome(c, http.StatusOK, out, err)
}

// RecalculateRace rescores one race from its stored result and predictions.
func (h *Handler) RecalculateRace(c echo.Context) error {
	raceID, err := idParam(c, "race")
	if err != nil {
		return err
	}
	out, err := h.scorer.RecalculateRace(c.Request().Context(), raceID)
	return outcome(c, http.StatusOK, out, err)
}

// RecalculatePool rescores every published race of a pool.
func (h *Handler) RecalculatePool(c echo.Context) error {
	poolID, err := idParam(c, "pool")
	if err != nil {
		return err
	}
	outs, err := h.scorer.RecalculatePool(c.Request().Context(), poolID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error":    err.Error(),
			"outcomes": outs,
		})
	}
	return c.JSON(http.StatusOK, outs)
}
