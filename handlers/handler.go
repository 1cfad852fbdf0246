package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	mw "github.com/padraicbc/racepool/middleware"
	"github.com/padraicbc/racepool/models"
	"github.com/padraicbc/racepool/scoring"
	"github.com/padraicbc/racepool/service"
	"github.com/padraicbc/racepool/store"
)

// Scorer is the service layer the handlers drive. *service.Scorer implements it.
type Scorer interface {
	PublishResult(ctx context.Context, raceID int64, result scoring.OfficialResult) (*service.RaceOutcome, error)
	RecalculateRace(ctx context.Context, raceID int64) (*service.RaceOutcome, error)
	RecalculatePool(ctx context.Context, poolID int64) ([]*service.RaceOutcome, error)
	SubmitPrediction(ctx context.Context, p *models.Prediction, now time.Time) error
	RacePredictions(ctx context.Context, raceID int64, viewer scoring.ParticipantKey, now time.Time) ([]models.Prediction, error)
	RaceScores(ctx context.Context, raceID int64) ([]models.Score, error)
	Leaderboard(ctx context.Context, poolID int64) ([]store.Standing, error)
}

// Store covers the account and pool administration the handlers do directly.
// *store.Store implements it.
type Store interface {
	UserByName(ctx context.Context, username string) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error
	CreatePool(ctx context.Context, name string) (*models.Pool, error)
	AddAccountMember(ctx context.Context, poolID, accountID int64, displayName string) (*models.Member, error)
	AddGuestMember(ctx context.Context, poolID int64, displayName string) (*models.Member, error)
	MemberByAccount(ctx context.Context, poolID, accountID int64) (*models.Member, error)
	Member(ctx context.Context, id string) (*models.Member, error)
	CreateRace(ctx context.Context, r *models.Race) error
	Race(ctx context.Context, raceID int64) (*models.Race, error)
	CreateRuleset(ctx context.Context, rs *models.Ruleset) error
}

var (
	_ Scorer = (*service.Scorer)(nil)
	_ Store  = (*store.Store)(nil)
)

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	store   Store
	scorer  Scorer
	isAdmin func(username string) bool
	now     func() time.Time
	JWTKey  []byte
}

// New creates a Handler. isAdmin decides which usernames may act on behalf
// of other participants.
func New(st Store, sc Scorer, jwtKey []byte, isAdmin func(string) bool) *Handler {
	return &Handler{
		store:   st,
		scorer:  sc,
		isAdmin: isAdmin,
		now:     time.Now,
		JWTKey:  jwtKey,
	}
}

// httpError maps service and store errors onto HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, service.ErrRulesNotConfigured):
		return echo.NewHTTPError(http.StatusConflict, "rules not configured").SetInternal(err)
	case errors.Is(err, service.ErrResultNotPublished):
		return echo.NewHTTPError(http.StatusConflict, "official result not published").SetInternal(err)
	case errors.Is(err, service.ErrPredictionsLocked):
		return echo.NewHTTPError(http.StatusLocked, "predictions locked")
	case errors.Is(err, service.ErrInvalidResult), errors.Is(err, service.ErrInvalidPrediction):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func idParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+" id")
	}
	return id, nil
}

// signedIn returns the username and account id the JWT middleware stored.
func signedIn(c echo.Context) (string, int64) {
	username, _ := c.Get(mw.KeyUsername).(string)
	accountID, _ := c.Get(mw.KeyAccountID).(int64)
	return username, accountID
}
