package feed

import "go.uber.org/fx"

// Module provides the feed builder to Fx.
var Module = fx.Provide(NewBuilder)
