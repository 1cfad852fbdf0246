package handlers

import (
	"github.com/labstack/echo/v4"

	mw "github.com/padraicbc/racepool/middleware"
)

// Register mounts the API under /rp.
func (h *Handler) Register(e *echo.Echo) {
	// Public
	e.POST("/rp/signin", h.Signin)

	// Protected – require valid JWT in Authorization header
	rp := e.Group("/rp", mw.JWT(h.JWTKey))
	rp.GET("/pools/:pool/leaderboard", h.Leaderboard)
	rp.GET("/races/:race/scores", h.RaceScores)
	rp.GET("/races/:race/predictions", h.RacePredictions)
	rp.POST("/races/:race/predictions", h.SubmitPrediction)

	admin := rp.Group("", mw.Admin(h.isAdmin))
	admin.POST("/users", h.CreateUser)
	admin.POST("/pools", h.CreatePool)
	admin.POST("/pools/:pool/members", h.AddMember)
	admin.POST("/pools/:pool/races", h.CreateRace)
	admin.POST("/pools/:pool/rulesets", h.CreateRuleset)
	admin.POST("/pools/:pool/recalculate", h.RecalculatePool)
	admin.POST("/races/:race/result", h.PublishResult)
	admin.POST("/races/:race/recalculate", h.RecalculateRace)
}
