package http

import (
	"go.uber.org/fx"

	diagtransport "github.com/Additional-Code/pincer/internal/transport/http/diag"
	itemtransport "github.com/Additional-Code/pincer/internal/transport/http/item"
	opentransport "github.com/Additional-Code/pincer/internal/transport/http/open"
	ordertransport "github.com/Additional-Code/pincer/internal/transport/http/order"
	pagetransport "github.com/Additional-Code/pincer/internal/transport/http/page"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	diagtransport.Module,
	itemtransport.Module,
	opentransport.Module,
	ordertransport.Module,
	pagetransport.Module,
)
