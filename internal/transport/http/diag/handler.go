// Package diag serves version, clock and feedback-vote endpoints.
package diag

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/counter"
	"github.com/Additional-Code/pincer/internal/presentation/http/response"
	"github.com/Additional-Code/pincer/internal/ratelimit"
	"github.com/Additional-Code/pincer/internal/session"
	"github.com/Additional-Code/pincer/internal/timeservice"
	"github.com/Additional-Code/pincer/pkg/errorbank"
)

// NotAllowedBody answers admin endpoints for everyone but sysadmins.
const NotAllowedBody = "Nice try!"

const timeLayout = "2006-01-02 15:04:05.000 -0700"

// Handler exposes the diagnostic endpoints.
type Handler struct {
	counters counter.Store
	clock    *timeservice.Service
	version  string
	votes    *ratelimit.Limiter
	logger   *zap.Logger
}

// NewHandler constructs a diagnostic Handler.
func NewHandler(counters counter.Store, clock *timeservice.Service, cfg config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		counters: counters,
		clock:    clock,
		version:  cfg.Pincer.Version,
		votes:    ratelimit.New(cfg.Pincer.FeedRateLimit, cfg.Pincer.FeedRateBurst),
		logger:   logger,
	}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	for _, prefix := range []string{"", "/api"} {
		e.GET(prefix+"/version", h.showVersion)
		e.GET(prefix+"/time", h.showTime)
	}
	e.POST("/api/easteregg/trashpanda/:feedback", h.vote, h.votes.Middleware())
	e.GET("/api/admin/trashpanda", h.tally)
	e.GET("/api/admin/trashpanda/raw", h.rawVotes)
}

func (h *Handler) showVersion(c echo.Context) error {
	return response.New(c).Raw().WithData("Version: " + h.version).Build()
}

func (h *Handler) showTime(c echo.Context) error {
	now := h.clock.Now()
	body := fmt.Sprintf("Time: %s\nTimestamp: %d", h.clock.Format(now, timeLayout), now.UnixMilli())
	return response.New(c).Raw().WithData(body).Build()
}

func (h *Handler) vote(c echo.Context) error {
	code, err := strconv.Atoi(c.Param("feedback"))
	if err != nil {
		return response.New(c).Raw().WithError(errorbank.BadRequest("feedback must be a number")).Build()
	}
	if err := h.counters.Vote(c.Request().Context(), c.RealIP(), code); err != nil {
		h.logger.Error("vote failed", zap.Error(err))
		return response.New(c).Raw().WithError(err).Build()
	}
	return response.New(c).Raw().WithData("OK").Build()
}

func (h *Handler) tally(c echo.Context) error {
	if !sysadmin(c) {
		return response.New(c).Raw().WithData(NotAllowedBody).Build()
	}
	votes, err := h.counters.Votes(c.Request().Context())
	if err != nil {
		return response.New(c).Raw().WithError(err).Build()
	}
	return response.New(c).Raw().WithData(counter.Summarize(votes).String()).Build()
}

func (h *Handler) rawVotes(c echo.Context) error {
	if !sysadmin(c) {
		return response.New(c).Raw().WithData(NotAllowedBody).Build()
	}
	votes, err := h.counters.Votes(c.Request().Context())
	if err != nil {
		return response.New(c).Raw().WithError(err).Build()
	}
	return response.New(c).Raw().WithData(counter.FormatVotes(votes)).Build()
}

func sysadmin(c echo.Context) bool {
	user, ok := session.UserFrom(c)
	return ok && user.Sysadmin
}
