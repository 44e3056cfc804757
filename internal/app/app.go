package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/pincer/internal/cache"
	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/counter"
	"github.com/Additional-Code/pincer/internal/database"
	"github.com/Additional-Code/pincer/internal/logger"
	"github.com/Additional-Code/pincer/internal/messaging"
	"github.com/Additional-Code/pincer/internal/observability"
	circlerepo "github.com/Additional-Code/pincer/internal/repository/circle"
	itemrepo "github.com/Additional-Code/pincer/internal/repository/item"
	openingrepo "github.com/Additional-Code/pincer/internal/repository/opening"
	orderrepo "github.com/Additional-Code/pincer/internal/repository/order"
	userrepo "github.com/Additional-Code/pincer/internal/repository/user"
	grpcserver "github.com/Additional-Code/pincer/internal/server/grpc"
	httpserver "github.com/Additional-Code/pincer/internal/server/http"
	catalogsvc "github.com/Additional-Code/pincer/internal/service/catalog"
	feedsvc "github.com/Additional-Code/pincer/internal/service/feed"
	ordersvc "github.com/Additional-Code/pincer/internal/service/order"
	statssvc "github.com/Additional-Code/pincer/internal/service/stats"
	usersvc "github.com/Additional-Code/pincer/internal/service/user"
	"github.com/Additional-Code/pincer/internal/session"
	"github.com/Additional-Code/pincer/internal/timeservice"
	transporthttp "github.com/Additional-Code/pincer/internal/transport/http"
	"github.com/Additional-Code/pincer/internal/worker"
	workerorder "github.com/Additional-Code/pincer/internal/worker/order"
)

// Storage is the minimal graph for schema and data tooling.
var Storage = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Storage,
	cache.Module,
	counter.Module,
	messaging.Module,
	observability.Module,
	timeservice.Module,
	circlerepo.Module,
	itemrepo.Module,
	openingrepo.Module,
	orderrepo.Module,
	userrepo.Module,
	catalogsvc.Module,
	ordersvc.Module,
	usersvc.Module,
	statssvc.Module,
	feedsvc.Module,
	session.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
