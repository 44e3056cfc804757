package order

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/availability"
	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/entity"
	"github.com/Additional-Code/pincer/internal/extras"
	"github.com/Additional-Code/pincer/internal/messaging"
	itemrepo "github.com/Additional-Code/pincer/internal/repository/item"
	openingrepo "github.com/Additional-Code/pincer/internal/repository/opening"
	repo "github.com/Additional-Code/pincer/internal/repository/order"
	"github.com/Additional-Code/pincer/internal/timeservice"
	"github.com/Additional-Code/pincer/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/pincer/service/order")
	serviceMeter  = otel.Meter("github.com/Additional-Code/pincer/service/order")
)

// Reasons reported to the customer when an order is refused.
const (
	ReasonItemNotFound    = "Item not found"
	ReasonNotOrderable    = "Item is not orderable"
	ReasonClosed          = "Ordering is not open for this opening"
	ReasonInvalidTimeSlot = "Invalid time slot"
	ReasonInvalidCount    = "Invalid count"
	ReasonInvalidDetails  = "Invalid order details"
	ReasonSoldOut         = "Sold out"
	ReasonCategorySoldOut = "Sold out in this category"
	ReasonOrderNotFound   = "Order not found"
	ReasonNotYourOrder    = "Not your order"
	ReasonNotPermitted    = "Not permitted"
	ReasonDuplicate       = "You already have an order in this opening"
	ReasonCannotChange    = "Order cannot be changed"
)

// Store persists orders.
type Store interface {
	Place(ctx context.Context, openingID int64, decide repo.Decision) (*entity.Order, error)
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	FindAllByOpening(ctx context.Context, openingID int64) ([]entity.Order, error)
	FindAllByUser(ctx context.Context, uid string) ([]entity.Order, error)
	UpdateStatus(ctx context.Context, id int64, status entity.OrderStatus) error
	UpdateRoomAndComment(ctx context.Context, id int64, room, comment string) error
}

// Items resolves the item being ordered.
type Items interface {
	GetByID(ctx context.Context, id int64) (*entity.Item, error)
}

// Openings resolves openings and their pickup slots.
type Openings interface {
	GetByID(ctx context.Context, id int64) (*entity.Opening, error)
	GetTimeWindow(ctx context.Context, id int64) (*entity.TimeWindow, error)
}

// NewOrder is a validated order request.
type NewOrder struct {
	ItemID       int64
	TimeWindowID int64
	Count        int
	Comment      string
	DetailsJSON  string
}

// Service encapsulates business logic around orders.
type Service struct {
	store     Store
	items     Items
	openings  Openings
	now       func() time.Time
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
	placed    metric.Int64Counter
	failed    metric.Int64Counter
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Items      *itemrepo.Repository
	Openings   *openingrepo.Repository
	Clock      *timeservice.Service
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Repository, p.Items, p.Openings, p.Clock.Now, p.Publisher, p.Config, p.Logger)
}

// New builds a Service from its collaborators.
func New(store Store, items Items, openings Openings, now func() time.Time, publisher messaging.Client, cfg config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:     store,
		items:     items,
		openings:  openings,
		now:       now,
		logger:    logger,
		publisher: publisher,
		messaging: messagingConfig{
			enabled: cfg.Messaging.Enabled,
			topic:   cfg.Messaging.Kafka.Topic,
		},
	}
	s.placed = s.counter("pincer.orders.placed", "Orders accepted.")
	s.failed = s.counter("pincer.orders.failed", "Orders refused, by reason.")
	return s
}

func (s *Service) counter(name, description string) metric.Int64Counter {
	c, err := serviceMeter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		s.logger.Warn("order metric unavailable", zap.String("metric", name), zap.Error(err))
		return noop.Int64Counter{}
	}
	return c
}

// MakeOrder places a self-service order for user.
func (s *Service) MakeOrder(ctx context.Context, user *entity.User, req NewOrder) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.MakeOrder", trace.WithAttributes(
		attribute.Int64("item.id", req.ItemID),
		attribute.Int64("time_window.id", req.TimeWindowID),
	))
	defer span.End()

	order, err := s.make(ctx, user, req, false, "")
	return s.finishPlacement(ctx, span, order, err)
}

// MakeManualOrder places an order entered by a circle administrator on behalf
// of someone described by details. The order window does not apply.
func (s *Service) MakeManualOrder(ctx context.Context, user *entity.User, req NewOrder, details string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.MakeManualOrder", trace.WithAttributes(
		attribute.Int64("item.id", req.ItemID),
		attribute.Int64("time_window.id", req.TimeWindowID),
	))
	defer span.End()

	order, err := s.make(ctx, user, req, true, details)
	if err == nil {
		s.logger.Info("manual order placed",
			zap.String("uid", user.UID),
			zap.Int64("order_id", order.ID),
			zap.String("details", details),
		)
	}
	return s.finishPlacement(ctx, span, order, err)
}

func (s *Service) finishPlacement(ctx context.Context, span trace.Span, order *entity.Order, err error) (*entity.Order, error) {
	if err != nil {
		reason := "internal"
		if errorbank.IsKind(err, errorbank.KindOrderFailed) {
			reason = errorbank.From(err).Message()
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, "order placement failed")
		}
		s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))
	s.placed.Add(ctx, 1)
	s.publish(ctx, EventOrderCreated, order)
	return order, nil
}

func (s *Service) make(ctx context.Context, user *entity.User, req NewOrder, manual bool, manualDetails string) (*entity.Order, error) {
	if user == nil {
		return nil, errorbank.Forbidden("login required")
	}
	if req.Count < 1 {
		return nil, errorbank.OrderFailed(ReasonInvalidCount)
	}

	item, err := s.items.GetByID(ctx, req.ItemID)
	if err != nil {
		if errors.Is(err, itemrepo.ErrNotFound) {
			return nil, errorbank.OrderFailed(ReasonItemNotFound)
		}
		return nil, errorbank.Internal("failed to load item", errorbank.WithCause(err))
	}
	if !item.Orderable {
		return nil, errorbank.OrderFailed(ReasonNotOrderable)
	}

	opening, err := s.openingOf(ctx, req.TimeWindowID)
	if err != nil {
		return nil, err
	}
	if opening.CircleID != item.CircleID {
		return nil, errorbank.OrderFailed(ReasonInvalidTimeSlot)
	}
	if manual {
		if !user.CanManage(item.CircleID) {
			return nil, errorbank.OrderFailed(ReasonNotPermitted)
		}
	} else if !opening.AcceptsOrdersAt(s.now()) {
		return nil, errorbank.OrderFailed(ReasonClosed)
	}

	price, err := s.price(item, req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	candidate := &entity.Order{
		UserID:        user.UID,
		UserName:      user.Name,
		OpeningID:     opening.ID,
		ItemID:        item.ID,
		TimeWindowID:  req.TimeWindowID,
		Count:         req.Count,
		Comment:       req.Comment,
		Room:          user.Room,
		DetailsJSON:   req.DetailsJSON,
		Price:         price,
		Status:        entity.OrderStatusAccepted,
		Manual:        manual,
		ManualDetails: manualDetails,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	decide := func(locked *entity.Opening, orders []entity.Order) (*entity.Order, error) {
		if !manual && !locked.AcceptsOrdersAt(s.now()) {
			return nil, errorbank.OrderFailed(ReasonClosed)
		}
		return candidate, Admit(locked, orders, candidate, item.ItemCategory())
	}

	placed, err := s.store.Place(ctx, opening.ID, decide)
	if err != nil {
		if errorbank.IsKind(err, errorbank.KindOrderFailed) {
			return nil, err
		}
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.OrderFailed(ReasonInvalidTimeSlot)
		}
		return nil, errorbank.Internal("failed to place order", errorbank.WithCause(err))
	}
	placed.Item = item
	return placed, nil
}

// Admit decides whether candidate fits into the opening given its current
// orders. Standard orders are limited to one accepted order per user.
func Admit(o *entity.Opening, orders []entity.Order, candidate *entity.Order, category entity.ItemCategory) error {
	if !candidate.Manual {
		for i := range orders {
			if orders[i].UserID == candidate.UserID && !orders[i].Manual && orders[i].Status == entity.OrderStatusAccepted {
				return errorbank.OrderFailed(ReasonDuplicate)
			}
		}
	}
	if availability.Remaining(o, orders) < candidate.Count {
		return errorbank.OrderFailed(ReasonSoldOut)
	}
	if availability.CategoryRemaining(o, orders, category) < candidate.Count {
		return errorbank.OrderFailed(ReasonCategorySoldOut)
	}
	return nil
}

func (s *Service) openingOf(ctx context.Context, timeWindowID int64) (*entity.Opening, error) {
	window, err := s.openings.GetTimeWindow(ctx, timeWindowID)
	if err != nil {
		if errors.Is(err, openingrepo.ErrNotFound) {
			return nil, errorbank.OrderFailed(ReasonInvalidTimeSlot)
		}
		return nil, errorbank.Internal("failed to load time window", errorbank.WithCause(err))
	}
	opening, err := s.openings.GetByID(ctx, window.OpeningID)
	if err != nil {
		if errors.Is(err, openingrepo.ErrNotFound) {
			return nil, errorbank.OrderFailed(ReasonInvalidTimeSlot)
		}
		return nil, errorbank.Internal("failed to load opening", errorbank.WithCause(err))
	}
	return opening, nil
}

func (s *Service) price(item *entity.Item, req NewOrder) (int, error) {
	schema, err := extras.ParseSchema(item.DetailsConfigJSON)
	if err != nil {
		return 0, errorbank.Internal("item has a broken details schema", errorbank.WithCause(err))
	}
	details, err := extras.ParseDetails(req.DetailsJSON)
	if err != nil {
		return 0, errorbank.OrderFailed(ReasonInvalidDetails, errorbank.WithCause(err))
	}
	delta, err := extras.Price(schema, details)
	if err != nil {
		return 0, errorbank.OrderFailed(ReasonInvalidDetails, errorbank.WithCause(err))
	}
	return (item.Price + delta) * req.Count, nil
}

// CancelOrder withdraws one of the user's accepted orders.
func (s *Service) CancelOrder(ctx context.Context, user *entity.User, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.CancelOrder", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.changeable(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, id, entity.OrderStatusCancelled); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to cancel order", errorbank.WithCause(err))
	}
	order.Status = entity.OrderStatusCancelled
	s.publish(ctx, EventOrderCancelled, order)
	return nil
}

// ChangeOrder updates the room and comment of one of the user's orders.
func (s *Service) ChangeOrder(ctx context.Context, user *entity.User, id int64, room, comment string) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ChangeOrder", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.changeable(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.store.UpdateRoomAndComment(ctx, id, room, comment); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to change order", errorbank.WithCause(err))
	}
	order.Room, order.Comment = room, comment
	s.publish(ctx, EventOrderChanged, order)
	return nil
}

func (s *Service) changeable(ctx context.Context, user *entity.User, id int64) (*entity.Order, error) {
	if user == nil {
		return nil, errorbank.Forbidden("login required")
	}
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.OrderFailed(ReasonOrderNotFound)
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if order.UserID != user.UID {
		return nil, errorbank.OrderFailed(ReasonNotYourOrder)
	}
	if order.Status != entity.OrderStatusAccepted {
		return nil, errorbank.OrderFailed(ReasonCannotChange)
	}
	opening, err := s.openings.GetByID(ctx, order.OpeningID)
	if err != nil {
		if errors.Is(err, openingrepo.ErrNotFound) {
			return nil, errorbank.OrderFailed(ReasonCannotChange)
		}
		return nil, errorbank.Internal("failed to load opening", errorbank.WithCause(err))
	}
	if !s.now().Before(opening.OrderEnd) {
		return nil, errorbank.OrderFailed(ReasonCannotChange)
	}
	return order, nil
}

// FindAllByOpening lists the orders of an opening.
func (s *Service) FindAllByOpening(ctx context.Context, openingID int64) ([]entity.Order, error) {
	orders, err := s.store.FindAllByOpening(ctx, openingID)
	if err != nil {
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// FindAllByUser lists a user's orders, newest first.
func (s *Service) FindAllByUser(ctx context.Context, uid string) ([]entity.Order, error) {
	orders, err := s.store.FindAllByUser(ctx, uid)
	if err != nil {
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}
