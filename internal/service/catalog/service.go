// Package catalog answers read-only questions about circles, items and
// openings.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/cache"
	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/entity"
	circlerepo "github.com/Additional-Code/pincer/internal/repository/circle"
	itemrepo "github.com/Additional-Code/pincer/internal/repository/item"
	openingrepo "github.com/Additional-Code/pincer/internal/repository/opening"
	"github.com/Additional-Code/pincer/internal/timeservice"
	"github.com/Additional-Code/pincer/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/pincer/service/catalog")

const (
	week          = 7 * 24 * time.Hour
	upcomingLimit = 10
)

// Circles reads circles.
type Circles interface {
	GetByID(ctx context.Context, id int64) (*entity.Circle, error)
	GetByAlias(ctx context.Context, alias string) (*entity.Circle, error)
	FindAllForMenu(ctx context.Context) ([]entity.Circle, error)
}

// Items reads items.
type Items interface {
	GetByID(ctx context.Context, id int64) (*entity.Item, error)
	FindAll(ctx context.Context) ([]entity.Item, error)
	FindAllByCircle(ctx context.Context, circleID int64) ([]entity.Item, error)
	FindOrderableAt(ctx context.Context, t time.Time) ([]entity.Item, error)
	FindServedBetween(ctx context.Context, from, to time.Time) ([]entity.Item, error)
	Search(ctx context.Context, keyword string) ([]entity.Item, error)
}

// Openings reads openings.
type Openings interface {
	GetByID(ctx context.Context, id int64) (*entity.Opening, error)
	FindNextOf(ctx context.Context, circleID int64, now time.Time) (*entity.Opening, error)
	FindActiveBetween(ctx context.Context, from, to time.Time) ([]entity.Opening, error)
	FindUpcoming(ctx context.Context, now time.Time, limit int) ([]entity.Opening, error)
}

// Service is the read side of the menu.
type Service struct {
	circles  Circles
	items    Items
	openings Openings
	clock    *timeservice.Service
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Circles  *circlerepo.Repository
	Items    *itemrepo.Repository
	Openings *openingrepo.Repository
	Clock    *timeservice.Service
	Cache    cache.Store
	Config   config.Config
	Logger   *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Circles, p.Items, p.Openings, p.Clock, p.Cache, p.Config.Cache.DefaultTTL, p.Logger)
}

// New builds a Service from its collaborators.
func New(circles Circles, items Items, openings Openings, clock *timeservice.Service, store cache.Store, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		circles:  circles,
		items:    items,
		openings: openings,
		clock:    clock,
		cache:    store,
		cacheTTL: ttl,
		logger:   logger,
	}
}

// Item returns an item with its circle.
func (s *Service) Item(ctx context.Context, id int64) (*entity.Item, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.Item", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	key := fmt.Sprintf("items:%d", id)
	var item entity.Item
	if s.fromCache(ctx, key, &item) {
		return &item, nil
	}
	loaded, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "item")
	}
	s.toCache(ctx, key, loaded)
	return loaded, nil
}

// Items lists the whole catalog.
func (s *Service) Items(ctx context.Context) ([]entity.Item, error) {
	items, err := s.items.FindAll(ctx)
	return items, translate(err, "items")
}

// ItemsByCircle lists the items of one circle.
func (s *Service) ItemsByCircle(ctx context.Context, circleID int64) ([]entity.Item, error) {
	items, err := s.items.FindAllByCircle(ctx, circleID)
	return items, translate(err, "items")
}

// ItemsOrderableNow lists items whose circle takes orders right now.
func (s *Service) ItemsOrderableNow(ctx context.Context) ([]entity.Item, error) {
	items, err := s.items.FindOrderableAt(ctx, s.clock.Now())
	return items, translate(err, "items")
}

// ItemsOrderableTomorrow lists items whose circle serves tomorrow.
func (s *Service) ItemsOrderableTomorrow(ctx context.Context) ([]entity.Item, error) {
	from := s.clock.StartOfDay(s.clock.Now()).AddDate(0, 0, 1)
	items, err := s.items.FindServedBetween(ctx, from, from.AddDate(0, 0, 1))
	return items, translate(err, "items")
}

// SearchItems filters the catalog by keyword. A blank keyword lists
// everything.
func (s *Service) SearchItems(ctx context.Context, keyword string) ([]entity.Item, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return s.Items(ctx)
	}
	items, err := s.items.Search(ctx, keyword)
	return items, translate(err, "items")
}

// Circle returns a circle by id.
func (s *Service) Circle(ctx context.Context, id int64) (*entity.Circle, error) {
	key := fmt.Sprintf("circles:%d", id)
	var circle entity.Circle
	if s.fromCache(ctx, key, &circle) {
		return &circle, nil
	}
	loaded, err := s.circles.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "circle")
	}
	s.toCache(ctx, key, loaded)
	return loaded, nil
}

// CircleByAlias returns a circle by its URL alias.
func (s *Service) CircleByAlias(ctx context.Context, alias string) (*entity.Circle, error) {
	circle, err := s.circles.GetByAlias(ctx, alias)
	if err != nil {
		return nil, translate(err, "circle")
	}
	return circle, nil
}

// CirclesForMenu lists the circles shown in the navigation.
func (s *Service) CirclesForMenu(ctx context.Context) ([]entity.Circle, error) {
	const key = "circles:menu"
	var circles []entity.Circle
	if s.fromCache(ctx, key, &circles) {
		return circles, nil
	}
	circles, err := s.circles.FindAllForMenu(ctx)
	if err != nil {
		return nil, translate(err, "circles")
	}
	s.toCache(ctx, key, circles)
	return circles, nil
}

// Opening returns an opening with its circle and time windows.
func (s *Service) Opening(ctx context.Context, id int64) (*entity.Opening, error) {
	opening, err := s.openings.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "opening")
	}
	return opening, nil
}

// NextOpeningOf returns the circle's next opening that still takes orders,
// or nil when there is none.
func (s *Service) NextOpeningOf(ctx context.Context, circleID int64) (*entity.Opening, error) {
	opening, err := s.openings.FindNextOf(ctx, circleID, s.clock.Now())
	if errors.Is(err, openingrepo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "opening")
	}
	return opening, nil
}

// NextOpenings resolves the next opening of every circle the items belong to.
// Each circle is looked up once.
func (s *Service) NextOpenings(ctx context.Context, items []entity.Item) (map[int64]*entity.Opening, error) {
	next := make(map[int64]*entity.Opening)
	for i := range items {
		circleID := items[i].CircleID
		if _, ok := next[circleID]; ok {
			continue
		}
		opening, err := s.NextOpeningOf(ctx, circleID)
		if err != nil {
			return nil, err
		}
		next[circleID] = opening
	}
	return next, nil
}

// NextWeek lists openings that have not ended and start within a week.
func (s *Service) NextWeek(ctx context.Context) ([]entity.Opening, error) {
	now := s.clock.Now()
	openings, err := s.openings.FindActiveBetween(ctx, now, now.Add(week))
	return openings, translate(err, "openings")
}

// Upcoming lists openings whose order window has not opened yet.
func (s *Service) Upcoming(ctx context.Context) ([]entity.Opening, error) {
	openings, err := s.openings.FindUpcoming(ctx, s.clock.Now(), upcomingLimit)
	return openings, translate(err, "openings")
}

func (s *Service) fromCache(ctx context.Context, key string, dst any) bool {
	err := cache.GetJSON(ctx, s.cache, key, dst)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *Service) toCache(ctx context.Context, key string, value any) {
	if err := cache.SetJSON(ctx, s.cache, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, itemrepo.ErrNotFound),
		errors.Is(err, circlerepo.ErrNotFound),
		errors.Is(err, openingrepo.ErrNotFound):
		return errorbank.NotFound(what + " not found")
	default:
		return errorbank.Internal("failed to load "+what, errorbank.WithCause(err))
	}
}
