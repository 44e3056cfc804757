package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/database"
	"github.com/Additional-Code/pincer/internal/observability"
	"github.com/Additional-Code/pincer/internal/presentation/http/view"
	"github.com/Additional-Code/pincer/internal/session"
)

// Module exposes the HTTP server lifecycle to Fx.
var Module = fx.Module("http_server",
	view.Module,
	fx.Provide(NewEcho),
	fx.Invoke(Run),
)

// Params collects the router dependencies.
type Params struct {
	fx.In

	Config        config.Config
	Database      *database.Connections `optional:"true"`
	Observability *observability.Manager
	Sessions      *session.Manager
	Renderer      *view.Renderer
	Logger        *zap.Logger
}

// NewEcho configures the router: recovery, tracing, request logging and the
// session resolver run in front of every handler.
func NewEcho(p Params) *echo.Echo {
	logger := p.Logger
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = p.Renderer
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code >= http.StatusInternalServerError {
			logger.Error("http request failed", zap.String("path", c.Request().URL.Path), zap.Error(err))
		}
		c.Echo().DefaultHTTPErrorHandler(err, c)
	}

	e.Use(middleware.Recover())
	if p.Observability != nil && p.Observability.TracingEnabled() {
		e.Use(otelecho.Middleware(p.Config.Observability.ServiceName))
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogMethod:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.Use(p.Sessions.Middleware())

	e.GET("/health", healthHandler(p.Config.Pincer.Version, time.Now()))
	if p.Database != nil {
		e.GET("/ready", readyHandler(p.Database))
	}

	if p.Observability != nil && p.Observability.MetricsHandler() != nil {
		e.GET(p.Observability.PrometheusPath(), echo.WrapHandler(p.Observability.MetricsHandler()))
	}

	return e
}

// Run starts the HTTP server and ties it to the Fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, e *echo.Echo, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", addr), zap.Int("routes", len(e.Routes())))
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
