package http

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"

	"github.com/Additional-Code/pincer/internal/presentation/http/response"
	"github.com/Additional-Code/pincer/pkg/errorbank"
)

const readyTimeout = 2 * time.Second

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type probeStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

func healthHandler(version string, started time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		return response.New(c).
			WithData(probeStatus{Status: "ok", Version: version}).
			WithMeta("uptime", time.Since(started).Round(time.Second).String()).
			Build()
	}
}

// readyHandler answers 503 with the error envelope while db cannot be reached.
func readyHandler(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			return response.New(c).
				WithStatus(http.StatusServiceUnavailable).
				WithError(errorbank.Internal("database unreachable",
					errorbank.WithCause(err),
					errorbank.WithDetail("component", "database"),
				)).
				Build()
		}
		return response.New(c).WithData(probeStatus{Status: "ready"}).Build()
	}
}
