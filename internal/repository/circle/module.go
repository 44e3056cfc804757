package circle

import "go.uber.org/fx"

// Module provides the circle repository to Fx.
var Module = fx.Provide(NewRepository)
