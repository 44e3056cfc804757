package open

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// Module wires the public feed handlers.
var Module = fx.Module("http_open",
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
