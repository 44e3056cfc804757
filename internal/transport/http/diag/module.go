package diag

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// Module wires the diagnostic handlers.
var Module = fx.Module("http_diag",
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
