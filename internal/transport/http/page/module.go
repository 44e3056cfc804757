package page

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// Module wires the browser page handlers.
var Module = fx.Module("http_page",
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
