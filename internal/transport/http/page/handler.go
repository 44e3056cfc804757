// Package page serves the server-rendered browser pages.
package page

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/rand/v2"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/counter"
	"github.com/Additional-Code/pincer/internal/entity"
	"github.com/Additional-Code/pincer/internal/presentation/http/response"
	"github.com/Additional-Code/pincer/internal/presentation/http/view"
	"github.com/Additional-Code/pincer/internal/service/catalog"
	ordersvc "github.com/Additional-Code/pincer/internal/service/order"
	"github.com/Additional-Code/pincer/internal/service/stats"
	"github.com/Additional-Code/pincer/internal/session"
	"github.com/Additional-Code/pincer/internal/timeservice"
	"github.com/Additional-Code/pincer/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/pincer/transport/http/page")

// NotAllowedBody answers the view insight for everyone but sysadmins.
const NotAllowedBody = "Nice try!"

// Catalog is the read side the pages need.
type Catalog interface {
	CirclesForMenu(ctx context.Context) ([]entity.Circle, error)
	Circle(ctx context.Context, id int64) (*entity.Circle, error)
	CircleByAlias(ctx context.Context, alias string) (*entity.Circle, error)
	NextOpeningOf(ctx context.Context, circleID int64) (*entity.Opening, error)
	NextWeek(ctx context.Context) ([]entity.Opening, error)
	Upcoming(ctx context.Context) ([]entity.Opening, error)
}

// Orders lists a user's orders.
type Orders interface {
	FindAllByUser(ctx context.Context, uid string) ([]entity.Order, error)
}

// Stats summarizes a user's history.
type Stats interface {
	DetailsForUser(ctx context.Context, user *entity.User) (stats.Details, error)
	RecentOrders(ctx context.Context, user *entity.User) ([]entity.Order, error)
}

// Handler renders the pages.
type Handler struct {
	catalog  Catalog
	orders   Orders
	stats    Stats
	counters counter.Store
	clock    *timeservice.Service
	logger   *zap.Logger
}

// CircleInfo pairs a circle with its next opening.
type CircleInfo struct {
	Circle entity.Circle
	Next   *entity.Opening
}

type homeBody struct {
	Opener   *entity.Opening
	Openings []entity.Opening
	Orders   []entity.Order
	Shuffled []entity.Circle
}

type itemsBody struct {
	Keyword    string
	SearchMode bool
	Card       string
}

type circleBody struct {
	Circle *entity.Circle
	Next   *entity.Opening
	Card   string
}

type profileBody struct {
	Code   string
	Orders []entity.Order
}

// NewHandler constructs a page Handler.
func NewHandler(svc *catalog.Service, orders *ordersvc.Service, st *stats.Service, counters counter.Store, clock *timeservice.Service, logger *zap.Logger) *Handler {
	return &Handler{
		catalog:  svc,
		orders:   orders,
		stats:    st,
		counters: counters,
		clock:    clock,
		logger:   logger,
	}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/", h.home)
	e.GET("/items", h.items)
	e.GET("/szor", h.circles)
	e.GET("/circle/:circle", h.circle)
	e.GET("/provider/:circle", h.circle)
	e.GET("/p/:circle", h.circle)
	e.GET("/profile", h.profile)
	e.GET("/stats", h.showStats)
	e.GET("/admin/stats-insight", h.statsInsight)
}

func (h *Handler) home(c echo.Context) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "page.home")
	defer span.End()

	circles, err := h.catalog.CirclesForMenu(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	body := homeBody{Shuffled: shuffled(circles)}

	upcoming, err := h.catalog.Upcoming(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	if len(upcoming) > 0 {
		body.Opener = &upcoming[0]
	}
	if body.Openings, err = h.catalog.NextWeek(ctx); err != nil {
		return h.fail(c, err)
	}
	if user, ok := session.UserFrom(c); ok {
		if body.Orders, err = h.stats.RecentOrders(ctx, user); err != nil {
			return h.fail(c, err)
		}
	}
	return h.render(c, "index", "Főoldal", circles, body)
}

func (h *Handler) items(c echo.Context) error {
	circles, err := h.catalog.CirclesForMenu(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	keyword := c.QueryParam("q")
	return h.render(c, "items", "Kínálat", circles, itemsBody{
		Keyword:    keyword,
		SearchMode: keyword != "",
		Card:       card(c),
	})
}

func (h *Handler) circles(c echo.Context) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "page.circles")
	defer span.End()

	circles, err := h.catalog.CirclesForMenu(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	infos := make([]CircleInfo, 0, len(circles))
	for _, circle := range circles {
		next, err := h.catalog.NextOpeningOf(ctx, circle.ID)
		if err != nil {
			return h.fail(c, err)
		}
		infos = append(infos, CircleInfo{Circle: circle, Next: next})
	}
	return h.render(c, "szor", "Körök", circles, infos)
}

// circle accepts either the numeric id or the alias of a circle.
func (h *Handler) circle(c echo.Context) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "page.circle")
	defer span.End()

	circles, err := h.catalog.CirclesForMenu(ctx)
	if err != nil {
		return h.fail(c, err)
	}

	param := c.Param("circle")
	var selected *entity.Circle
	if id, perr := strconv.ParseInt(param, 10, 64); perr == nil && id >= 0 {
		selected, err = h.catalog.Circle(ctx, id)
	} else {
		selected, err = h.catalog.CircleByAlias(ctx, param)
	}
	if err != nil {
		return h.fail(c, err)
	}

	next, err := h.catalog.NextOpeningOf(ctx, selected.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return h.render(c, "circle", selected.DisplayName, circles, circleBody{
		Circle: selected,
		Next:   next,
		Card:   card(c),
	})
}

func (h *Handler) profile(c echo.Context) error {
	user, ok := session.UserFrom(c)
	if !ok {
		return h.fail(c, errorbank.Forbidden("login required"))
	}
	ctx := c.Request().Context()

	circles, err := h.catalog.CirclesForMenu(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	orders, err := h.orders.FindAllByUser(ctx, user.UID)
	if err != nil {
		return h.fail(c, err)
	}
	return h.render(c, "profile", "Profil", circles, profileBody{Code: ProfileCode(user.UID), Orders: orders})
}

func (h *Handler) showStats(c echo.Context) error {
	user, ok := session.UserFrom(c)
	if !ok {
		return h.fail(c, errorbank.Forbidden("login required"))
	}
	ctx := c.Request().Context()

	if err := h.counters.View(ctx, user.UID, user.Name, h.clock.Now()); err != nil {
		h.logger.Warn("stats view not recorded", zap.String("uid", user.UID), zap.Error(err))
	}

	circles, err := h.catalog.CirclesForMenu(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	details, err := h.stats.DetailsForUser(ctx, user)
	if err != nil {
		return h.fail(c, err)
	}
	return h.render(c, "stats", "Statisztika", circles, details)
}

func (h *Handler) statsInsight(c echo.Context) error {
	if user, ok := session.UserFrom(c); !ok || !user.Sysadmin {
		return response.New(c).Raw().WithData(NotAllowedBody).Build()
	}
	views, err := h.counters.Views(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return response.New(c).Raw().WithData(counter.FormatViews(views)).Build()
}

func (h *Handler) render(c echo.Context, name, title string, circles []entity.Circle, body any) error {
	user, _ := session.UserFrom(c)
	return c.Render(http.StatusOK, name, view.Page{
		Title:   title,
		User:    user,
		Circles: circles,
		Body:    body,
	})
}

func (h *Handler) fail(c echo.Context, err error) error {
	if !errorbank.IsKind(err, errorbank.KindForbidden) && !errorbank.IsKind(err, errorbank.KindNotFound) {
		h.logger.Error("page failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return response.New(c).Raw().WithError(err).Build()
}

// ProfileCode is the short public code shown on a user's profile.
func ProfileCode(uid string) string {
	sum := sha256.Sum256([]byte(uid))
	return hex.EncodeToString(sum[:])[:6]
}

func card(c echo.Context) string {
	if user, ok := session.UserFrom(c); ok && user.CardType != "" {
		return string(user.CardType)
	}
	return string(entity.CardDO)
}

func shuffled(circles []entity.Circle) []entity.Circle {
	out := append([]entity.Circle(nil), circles...)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
