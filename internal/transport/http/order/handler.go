package order

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/dto"
	"github.com/Additional-Code/pincer/internal/entity"
	"github.com/Additional-Code/pincer/internal/presentation/http/response"
	service "github.com/Additional-Code/pincer/internal/service/order"
	usersvc "github.com/Additional-Code/pincer/internal/service/user"
	"github.com/Additional-Code/pincer/internal/session"
	"github.com/Additional-Code/pincer/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/pincer/transport/http/order")

const (
	ack    = "ACK"
	reject = "REJECT"
)

// Orders is the order workflow used by the handler.
type Orders interface {
	MakeOrder(ctx context.Context, user *entity.User, req service.NewOrder) (*entity.Order, error)
	MakeManualOrder(ctx context.Context, user *entity.User, req service.NewOrder, details string) (*entity.Order, error)
	CancelOrder(ctx context.Context, user *entity.User, id int64) error
	ChangeOrder(ctx context.Context, user *entity.User, id int64, room, comment string) error
}

// Rooms updates a user's room code.
type Rooms interface {
	SetRoom(ctx context.Context, user *entity.User, room string) (*entity.User, error)
}

// Sessions persists the session user.
type Sessions interface {
	Save(ctx context.Context, user *entity.User) error
}

// Handler exposes order endpoints over HTTP.
type Handler struct {
	orders   Orders
	rooms    Rooms
	sessions Sessions
	logger   *zap.Logger
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, users *usersvc.Service, sessions *session.Manager, logger *zap.Logger) *Handler {
	return &Handler{orders: svc, rooms: users, sessions: sessions, logger: logger}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	api := e.Group("/api")
	api.POST("/order", h.create)
	api.POST("/order/delete", h.cancel)
	api.POST("/order/change", h.change)
	api.POST("/user/room", h.setRoom)
	e.POST("/user/room", h.setRoom)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c).Raw()

	user, ok := session.UserFrom(c)
	if !ok {
		return b.WithError(errorbank.Forbidden("login required")).Build()
	}

	payload := dto.DefaultNewOrderRequest()
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if !payload.Valid() {
		return b.WithError(errorbank.BadRequest("invalid order request")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.Int64("item.id", payload.ID),
		attribute.Bool("order.manual", payload.ManualOrderDetails != nil),
	))
	defer span.End()

	req := service.NewOrder{
		ItemID:       payload.ID,
		TimeWindowID: payload.Time,
		Count:        payload.Count,
		Comment:      payload.Comment,
		DetailsJSON:  payload.DetailsJSON,
	}

	var err error
	if payload.ManualOrderDetails != nil {
		h.logger.Info("manual order requested",
			zap.String("uid", user.UID),
			zap.String("name", user.Name),
			zap.String("details", payload.DetailsJSON),
			zap.Any("for", payload.ManualOrderDetails),
		)
		_, err = h.orders.MakeManualOrder(ctx, user, req, payload.ManualOrderDetails.Encode())
	} else {
		_, err = h.orders.MakeOrder(ctx, user, req)
	}
	if err != nil {
		h.logFailure("new order", user, err)
		return b.WithError(err).Build()
	}
	return b.WithData(ack).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c).Raw()

	user, ok := session.UserFrom(c)
	if !ok {
		return b.WithError(errorbank.Forbidden("login required")).Build()
	}
	var payload dto.DeleteOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.cancel", trace.WithAttributes(attribute.Int64("order.id", payload.ID)))
	defer span.End()

	if err := h.orders.CancelOrder(ctx, user, payload.ID); err != nil {
		h.logFailure("cancel order", user, err)
		return b.WithError(err).Build()
	}
	return b.WithData(ack).Build()
}

func (h *Handler) change(c echo.Context) error {
	b := response.New(c).Raw()

	user, ok := session.UserFrom(c)
	if !ok {
		return b.WithError(errorbank.Forbidden("login required")).Build()
	}
	var payload dto.ChangeOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.change", trace.WithAttributes(attribute.Int64("order.id", payload.ID)))
	defer span.End()

	if err := h.orders.ChangeOrder(ctx, user, payload.ID, payload.Room, payload.Comment); err != nil {
		h.logFailure("change order", user, err)
		return b.WithError(err).Build()
	}
	return b.WithData(ack).Build()
}

func (h *Handler) setRoom(c echo.Context) error {
	b := response.New(c).Raw()

	user, ok := session.UserFrom(c)
	if !ok {
		return b.WithData(reject).Build()
	}
	var payload dto.RoomChangeRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithData(reject).Build()
	}

	ctx := c.Request().Context()
	updated, err := h.rooms.SetRoom(ctx, user, payload.Room)
	if err != nil {
		h.logger.Warn("room change rejected", zap.String("uid", user.UID), zap.Error(err))
		return b.WithData(reject).Build()
	}
	if err := h.sessions.Save(ctx, updated); err != nil {
		h.logger.Warn("session update failed", zap.String("uid", user.UID), zap.Error(err))
		return b.WithData(reject).Build()
	}
	session.WithUser(c, updated)
	return b.WithData(ack).Build()
}

func (h *Handler) logFailure(action string, user *entity.User, err error) {
	if errorbank.IsKind(err, errorbank.KindOrderFailed) {
		h.logger.Warn("failed to "+action,
			zap.String("uid", user.UID),
			zap.String("reason", errorbank.From(err).Message()),
		)
		return
	}
	h.logger.Error("failed to "+action, zap.String("uid", user.UID), zap.Error(err))
}
