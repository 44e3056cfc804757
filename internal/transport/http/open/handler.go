// Package open serves the public, cross-origin feeds read by external
// displays.
package open

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/presentation/http/response"
	"github.com/Additional-Code/pincer/internal/ratelimit"
	"github.com/Additional-Code/pincer/internal/service/feed"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/pincer/transport/http/open")

// Feed builds the openings feed.
type Feed interface {
	Openings(ctx context.Context, token string) ([]feed.Detail, error)
}

// Handler exposes the feeds.
type Handler struct {
	feed    Feed
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewHandler constructs a feed Handler.
func NewHandler(b *feed.Builder, cfg config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		feed:    b,
		limiter: ratelimit.New(cfg.Pincer.FeedRateLimit, cfg.Pincer.FeedRateBurst),
		logger:  logger,
	}
}

// Register routes with provided Echo instance. Every origin may read the
// feeds.
func Register(e *echo.Echo, h *Handler) {
	crossOrigin := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	})
	g := e.Group("/api/open", echo.WrapMiddleware(crossOrigin.Handler), h.limiter.Middleware())
	methods := []string{http.MethodGet, http.MethodOptions}
	g.Match(methods, "/openings", h.openings)
	g.Match(methods, "/upcoming-openings", h.upcoming)
}

func (h *Handler) openings(c echo.Context) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "open.openings")
	defer span.End()

	details, err := h.feed.Openings(ctx, c.QueryParam("token"))
	if err != nil {
		h.logger.Error("feed failed", zap.Error(err))
		return response.New(c).Raw().WithError(err).Build()
	}
	return response.New(c).Raw().WithData(details).Build()
}

func (h *Handler) upcoming(c echo.Context) error {
	return response.New(c).Raw().WithData(feed.Deprecated()).Build()
}
