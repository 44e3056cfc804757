package item

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/dto"
	"github.com/Additional-Code/pincer/internal/entity"
	"github.com/Additional-Code/pincer/internal/presentation/http/response"
	"github.com/Additional-Code/pincer/internal/service/catalog"
	"github.com/Additional-Code/pincer/internal/session"
	"github.com/Additional-Code/pincer/internal/timeservice"
	"github.com/Additional-Code/pincer/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/pincer/transport/http/item")

// Catalog is the read side used by the item endpoints.
type Catalog interface {
	Item(ctx context.Context, id int64) (*entity.Item, error)
	Items(ctx context.Context) ([]entity.Item, error)
	ItemsByCircle(ctx context.Context, circleID int64) ([]entity.Item, error)
	ItemsOrderableNow(ctx context.Context) ([]entity.Item, error)
	ItemsOrderableTomorrow(ctx context.Context) ([]entity.Item, error)
	SearchItems(ctx context.Context, keyword string) ([]entity.Item, error)
	Opening(ctx context.Context, id int64) (*entity.Opening, error)
	NextOpeningOf(ctx context.Context, circleID int64) (*entity.Opening, error)
	NextOpenings(ctx context.Context, items []entity.Item) (map[int64]*entity.Opening, error)
}

// Network tells whether a request comes from the internal network.
type Network interface {
	InInternalNetwork(c echo.Context) bool
}

// Handler exposes the item catalog over HTTP.
type Handler struct {
	catalog  Catalog
	network  Network
	now      func() time.Time
	pageSize int
	logger   *zap.Logger
}

// NewHandler constructs an item Handler.
func NewHandler(svc *catalog.Service, sessions *session.Manager, clock *timeservice.Service, cfg config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		catalog:  svc,
		network:  sessions,
		now:      clock.Now,
		pageSize: cfg.Pincer.PageSize,
		logger:   logger,
	}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	api := e.Group("/api")
	api.GET("/item/:id", h.getByID)
	api.GET("/items", h.list)
	api.GET("/items/now", h.listNow)
	api.GET("/items/tomorrow", h.listTomorrow)
	api.GET("/items/:page", h.listPage)
	api.GET("/search", h.search)
	api.GET("/search/", h.search)
}

type viewer struct {
	hasUser  bool
	loggedIn bool
}

func (h *Handler) viewerOf(c echo.Context) viewer {
	_, hasUser := session.UserFrom(c)
	return viewer{hasUser: hasUser, loggedIn: hasUser || h.network.InInternalNetwork(c)}
}

// noItem answers an empty 200 body, which item pages read as "no such item".
func noItem(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c).Raw()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return noItem(c)
	}
	explicit, _ := strconv.ParseInt(c.QueryParam("explicitOpening"), 10, 64)

	ctx, span := httpTracer.Start(c.Request().Context(), "items.getByID", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	v := h.viewerOf(c)
	item, err := h.catalog.Item(ctx, id)
	if errorbank.IsKind(err, errorbank.KindNotFound) {
		return noItem(c)
	}
	if err != nil {
		return b.WithError(err).Build()
	}
	if !v.hasUser && !item.VisibleWithoutLogin {
		return noItem(c)
	}

	var opening *entity.Opening
	if explicit != 0 {
		opening, err = h.catalog.Opening(ctx, explicit)
	} else {
		opening, err = h.catalog.NextOpeningOf(ctx, item.CircleID)
	}
	if err != nil && !errorbank.IsKind(err, errorbank.KindNotFound) {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewItemResponse(item, opening, v.loggedIn, v.loggedIn && explicit > 0, h.now())).Build()
}

func (h *Handler) list(c echo.Context) error {
	ctx := c.Request().Context()
	if raw := c.QueryParam("circle"); raw != "" {
		circleID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return response.New(c).Raw().WithData([]dto.ItemResponse{}).Build()
		}
		return h.respond(c, func() ([]entity.Item, error) {
			return h.catalog.ItemsByCircle(ctx, circleID)
		}, false)
	}
	return h.respond(c, func() ([]entity.Item, error) { return h.catalog.Items(ctx) }, true)
}

func (h *Handler) listNow(c echo.Context) error {
	return h.respond(c, func() ([]entity.Item, error) {
		return h.catalog.ItemsOrderableNow(c.Request().Context())
	}, true)
}

func (h *Handler) listTomorrow(c echo.Context) error {
	return h.respond(c, func() ([]entity.Item, error) {
		return h.catalog.ItemsOrderableTomorrow(c.Request().Context())
	}, true)
}

func (h *Handler) search(c echo.Context) error {
	return h.respond(c, func() ([]entity.Item, error) {
		return h.catalog.SearchItems(c.Request().Context(), c.QueryParam("q"))
	}, false)
}

func (h *Handler) listPage(c echo.Context) error {
	b := response.New(c).Raw()

	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 0 {
		return b.WithData([]dto.ItemResponse{}).Build()
	}

	v := h.viewerOf(c)
	items, err := h.catalog.Items(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	visible := catalog.Page(catalog.VisibleTo(items, catalog.Audience{LoggedIn: v.hasUser, AllItems: true}), page, h.pageSize)
	out, err := h.toResponses(c.Request().Context(), visible, v)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(out).Build()
}

func (h *Handler) respond(c echo.Context, load func() ([]entity.Item, error), allItems bool) error {
	b := response.New(c).Raw()

	v := h.viewerOf(c)
	items, err := load()
	if err != nil {
		return b.WithError(err).Build()
	}
	visible := catalog.VisibleTo(items, catalog.Audience{LoggedIn: v.hasUser, AllItems: allItems})
	out, err := h.toResponses(c.Request().Context(), visible, v)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(out).Build()
}

func (h *Handler) toResponses(ctx context.Context, items []entity.Item, v viewer) ([]dto.ItemResponse, error) {
	next, err := h.catalog.NextOpenings(ctx, items)
	if err != nil {
		return nil, err
	}
	now := h.now()
	out := make([]dto.ItemResponse, 0, len(items))
	for i := range items {
		out = append(out, dto.NewItemResponse(&items[i], next[items[i].CircleID], v.loggedIn, false, now))
	}
	return out, nil
}
