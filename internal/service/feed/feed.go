// Package feed builds the public, token-gated list of openings shown on
// external displays.
package feed

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/availability"
	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/entity"
	repo "github.com/Additional-Code/pincer/internal/repository/order"
	"github.com/Additional-Code/pincer/internal/service/catalog"
	"github.com/Additional-Code/pincer/internal/timeservice"
	"github.com/Additional-Code/pincer/pkg/errorbank"
)

var (
	feedTracer = otel.Tracer("github.com/Additional-Code/pincer/service/feed")
	feedMeter  = otel.Meter("github.com/Additional-Code/pincer/service/feed")
)

const (
	sentinelFeeling = "sad"
	sentinelComment = "Contact the administrator if you think this is a problem"
	deadlineSuffix  = "-ig rendelhető"
)

// Detail is one opening as shown on a display.
type Detail struct {
	Name        string  `json:"name"`
	Icon        *string `json:"icon"`
	Feeling     string  `json:"feeling"`
	Available   int     `json:"available"`
	OutOf       int     `json:"outOf"`
	Banner      *string `json:"banner"`
	Day         string  `json:"day"`
	Comment     string  `json:"comment"`
	CircleURL   string  `json:"circleUrl"`
	CircleColor string  `json:"circleColor"`
}

// UpcomingDetail is the record of the retired upcoming-openings feed.
type UpcomingDetail struct {
	Name         string  `json:"name"`
	OrderStart   int64   `json:"orderStart"`
	OpeningStart int64   `json:"openingStart"`
	Icon         *string `json:"icon"`
	Feeling      string  `json:"feeling"`
	Available    int     `json:"available"`
	OutOf        int     `json:"outOf"`
	Banner       *string `json:"banner"`
	Day          string  `json:"day"`
	Comment      string  `json:"comment"`
	CircleURL    string  `json:"circleUrl"`
	CircleColor  string  `json:"circleColor"`
}

// Openings lists the openings of the coming week.
type Openings interface {
	NextWeek(ctx context.Context) ([]entity.Opening, error)
}

// Orders lists the orders of an opening.
type Orders interface {
	FindAllByOpening(ctx context.Context, openingID int64) ([]entity.Order, error)
}

// Builder assembles feed responses.
type Builder struct {
	openings Openings
	orders   Orders
	clock    *timeservice.Service
	tokens   []string
	baseURL  string
	logger   *zap.Logger
	requests metric.Int64Counter
}

// Params defines dependencies for constructing Builder.
type Params struct {
	fx.In

	Catalog *catalog.Service
	Orders  *repo.Repository
	Clock   *timeservice.Service
	Config  config.Config
	Logger  *zap.Logger
}

// NewBuilder wires a Builder from configuration.
func NewBuilder(p Params) *Builder {
	return New(p.Catalog, p.Orders, p.Clock, p.Config.Pincer, p.Logger)
}

// New builds a Builder. Tokens are compared after trimming; blank tokens are
// never accepted.
func New(openings Openings, orders Orders, clock *timeservice.Service, cfg config.Pincer, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens := make([]string, 0, len(cfg.APITokens))
	for _, t := range cfg.APITokens {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	requests, err := feedMeter.Int64Counter("pincer.feed.requests", metric.WithDescription("Feed requests, by token validity."))
	if err != nil {
		logger.Warn("feed metric unavailable", zap.Error(err))
		requests = noop.Int64Counter{}
	}
	return &Builder{
		openings: openings,
		orders:   orders,
		clock:    clock,
		tokens:   tokens,
		baseURL:  cfg.BaseURL,
		logger:   logger,
		requests: requests,
	}
}

// Valid reports whether token is one of the configured feed tokens.
func (b *Builder) Valid(token string) bool {
	token = strings.TrimSpace(token)
	return token != "" && slices.Contains(b.tokens, token)
}

// Openings returns the feed for token. An unknown token yields a single
// sentinel entry and no opening data.
func (b *Builder) Openings(ctx context.Context, token string) ([]Detail, error) {
	ctx, span := feedTracer.Start(ctx, "FeedBuilder.Openings")
	defer span.End()

	valid := b.Valid(token)
	b.requests.Add(ctx, 1, metric.WithAttributes(attribute.Bool("valid", valid)))
	if !valid {
		return []Detail{InvalidToken()}, nil
	}

	openings, err := b.openings.NextWeek(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := b.clock.Now()
	details := make([]Detail, 0, len(openings))
	for i := range openings {
		o := &openings[i]
		if o.Circle == nil || !o.VisibleAt(now) {
			continue
		}
		orders, err := b.orders.FindAllByOpening(ctx, o.ID)
		if err != nil {
			span.RecordError(err)
			return nil, errorbank.Internal("failed to load orders", errorbank.WithCause(err))
		}
		d := b.detail(o, availability.Available(o, orders))
		if d.Available <= 0 {
			continue
		}
		details = append(details, d)
	}
	span.SetAttributes(attribute.Int("feed.entries", len(details)))
	return details, nil
}

func (b *Builder) detail(o *entity.Opening, available int) Detail {
	return Detail{
		Name:        o.Circle.DisplayName,
		Icon:        b.absolute(o.Circle.LogoURL),
		Feeling:     o.Feeling,
		Available:   available,
		OutOf:       o.MaxOrder,
		Banner:      b.absolute(o.PrURL),
		Day:         b.clock.DayName(o.DateStart),
		Comment:     b.Deadline(o),
		CircleURL:   b.CircleURL(o.Circle),
		CircleColor: circleColor(o.Circle),
	}
}

// Deadline renders when ordering closes, such as "Kedd 18:00-ig rendelhető".
func (b *Builder) Deadline(o *entity.Opening) string {
	return b.clock.DayName(o.OrderEnd) + " " + b.clock.Format(o.OrderEnd, "15:04") + deadlineSuffix
}

// CircleURL is the absolute profile page of a circle, by alias when it has
// one.
func (b *Builder) CircleURL(c *entity.Circle) string {
	if c == nil {
		return b.baseURL + "p/0"
	}
	if c.Alias != "" {
		return b.baseURL + "p/" + c.Alias
	}
	return b.baseURL + "p/" + strconv.FormatInt(c.ID, 10)
}

// absolute prefixes the base URL even when relative is empty, so displays
// always get a loadable address.
func (b *Builder) absolute(relative string) *string {
	abs := b.baseURL + relative
	return &abs
}

func circleColor(c *entity.Circle) string {
	if c == nil || c.CSSClassName == "" {
		return "none"
	}
	return c.CSSClassName
}

// InvalidToken is the entry returned in place of the feed for unknown tokens.
func InvalidToken() Detail {
	return Detail{
		Name:    "Invalid Token",
		Feeling: sentinelFeeling,
		Comment: sentinelComment,
	}
}

// Deprecated returns the only entry the retired upcoming-openings feed
// still serves.
func Deprecated() []UpcomingDetail {
	return []UpcomingDetail{{
		Name:    "This feature is deprecated",
		Feeling: sentinelFeeling,
		Comment: sentinelComment,
	}}
}
