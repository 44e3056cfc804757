package opening

import "go.uber.org/fx"

// Module provides the opening repository to Fx.
var Module = fx.Provide(NewRepository)
