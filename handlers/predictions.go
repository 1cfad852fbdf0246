package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/racepool/models"
	"github.com/padraicbc/racepool/scoring"
	"github.com/padraicbc/racepool/store"
)

type predictionRequest struct {
	// MemberID lets an admin submit for a guest or another member.
	MemberID     string   `json:"memberID"`
	WinnerPick   string   `json:"winnerPick"`
	ExactaPick   []string `json:"exactaPick"`
	TrifectaPick []string `json:"trifectaPick"`
}

// participant resolves who the signed-in user is within the race's pool: the
// membership when there is one, the bare account otherwise.
func (h *Handler) participant(c echo.Context, race *models.Race) (scoring.ParticipantKey, error) {
	_, accountID := signedIn(c)
	if accountID == 0 {
		return scoring.ParticipantKey{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	key := scoring.ParticipantKey{AccountID: strconv.FormatInt(accountID, 10)}

	m, err := h.store.MemberByAccount(c.Request().Context(), race.PoolID, accountID)
	switch {
	case err == nil:
		key.MembershipID = m.ID
	case !errors.Is(err, store.ErrNotFound):
		return key, httpError(err)
	}
	return key, nil
}

// SubmitPrediction stores the caller's picks for a race. Picks can be
// replaced freely until the race locks.
func (h *Handler) SubmitPrediction(c echo.Context) error {
	raceID, err := idParam(c, "race")
	if err != nil {
		return err
	}
	var req predictionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	race, err := h.store.Race(ctx, raceID)
	if err != nil {
		return httpError(err)
	}

	p := &models.Prediction{
		RaceID:       raceID,
		ExactaPick:   req.ExactaPick,
		TrifectaPick: req.TrifectaPick,
		UpdatedAt:    h.now().UTC(),
	}
	if w := strings.TrimSpace(req.WinnerPick); w != "" {
		p.WinnerPick = &w
	}

	if req.MemberID != "" {
		username, _ := signedIn(c)
		if !h.isAdmin(username) {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		m, err := h.store.Member(ctx, req.MemberID)
		if err != nil {
			return httpError(err)
		}
		if m.PoolID != race.PoolID {
			return echo.NewHTTPError(http.StatusBadRequest, "member is not in this race's pool")
		}
		p.MemberID = &m.ID
		p.AccountID = m.AccountID
	} else {
		key, err := h.participant(c, race)
		if err != nil {
			return err
		}
		_, accountID := signedIn(c)
		p.AccountID = &accountID
		if key.MembershipID != "" {
			p.MemberID = &key.MembershipID
		}
	}

	if err := h.scorer.SubmitPrediction(ctx, p, h.now()); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// RacePredictions lists the predictions for a race that the caller may see.
func (h *Handler) RacePredictions(c echo.Context) error {
	raceID, err := idParam(c, "race")
	if err != nil {
		return err
	}
	race, err := h.store.Race(c.Request().Context(), raceID)
	if err != nil {
		return httpError(err)
	}
	viewer, err := h.participant(c, race)
	if err != nil {
		return err
	}

	preds, err := h.scorer.RacePredictions(c.Request().Context(), raceID, viewer, h.now())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, preds)
}
