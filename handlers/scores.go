package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/racepool/service"
	"github.com/padraicbc/racepool/store"
)

const (
	statusOK                 = "ok"
	statusRulesNotConfigured = "rules_not_configured"
)

type leaderboardResponse struct {
	PoolID    int64            `json:"poolID"`
	Status    string           `json:"status"`
	Standings []store.Standing `json:"standings,omitempty"`
}

// RaceScores returns the persisted scores of a race.
func (h *Handler) RaceScores(c echo.Context) error {
	raceID, err := idParam(c, "race")
	if err != nil {
		return err
	}
	scores, err := h.scorer.RaceScores(c.Request().Context(), raceID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, scores)
}

// Leaderboard returns a pool's standings. A pool without rules reports that
// state instead of an all-zero board.
func (h *Handler) Leaderboard(c echo.Context) error {
	poolID, err := idParam(c, "pool")
	if err != nil {
		return err
	}
	standings, err := h.scorer.Leaderboard(c.Request().Context(), poolID)
	if errors.Is(err, service.ErrRulesNotConfigured) {
		return c.JSON(http.StatusOK, leaderboardResponse{PoolID: poolID, Status: statusRulesNotConfigured})
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, leaderboardResponse{PoolID: poolID, Status: statusOK, Standings: standings})
}
