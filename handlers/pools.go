package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/racepool/models"
	"github.com/padraicbc/racepool/scoring"
)

// CreatePool creates a pool from {"name": "..."}.
func (h *Handler) CreatePool(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	pool, err := h.store.CreatePool(c.Request().Context(), req.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, pool)
}

type memberRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// AddMember enrolls an account by username, or a guest when no username is
// given.
func (h *Handler) AddMember(c echo.Context) error {
	poolID, err := idParam(c, "pool")
	if err != nil {
		return err
	}
	var req memberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Username = strings.TrimSpace(req.Username)
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	ctx := c.Request().Context()
	if req.Username == "" {
		if req.DisplayName == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "a guest needs a displayName")
		}
		m, err := h.store.AddGuestMember(ctx, poolID, req.DisplayName)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusCreated, m)
	}

	user, err := h.store.UserByName(ctx, req.Username)
	if err != nil {
		return httpError(err)
	}
	if req.DisplayName == "" {
		req.DisplayName = user.Username
	}
	m, err := h.store.AddAccountMember(ctx, poolID, user.ID, req.DisplayName)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

type raceRequest struct {
	Sequence int       `json:"sequence"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"startsAt"`
}

// CreateRace adds a race to a pool's calendar.
func (h *Handler) CreateRace(c echo.Context) error {
	poolID, err := idParam(c, "pool")
	if err != nil {
		return err
	}
	var req raceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Sequence < 1 || req.StartsAt.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "sequence and startsAt are required")
	}

	race := &models.Race{
		PoolID:   poolID,
		Sequence: req.Sequence,
		Name:     strings.TrimSpace(req.Name),
		StartsAt: req.StartsAt.UTC(),
	}
	if err := h.store.CreateRace(c.Request().Context(), race); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, race)
}

// CreateRuleset stores a new ruleset version for a pool. Existing versions
// are never edited.
func (h *Handler) CreateRuleset(c echo.Context) error {
	poolID, err := idParam(c, "pool")
	if err != nil {
		return err
	}
	var rs models.Ruleset
	if err := c.Bind(&rs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rs.ID = 0
	rs.PoolID = poolID
	if len(rs.EnabledModalities) == 0 {
		rs.EnabledModalities = scoring.Modalities
	}
	if err := rs.Rules().Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rs.CreatedAt = h.now().UTC()

	if err := h.store.CreateRuleset(c.Request().Context(), &rs); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, &rs)
}
