// Package stats summarizes a user's order history.
package stats

import (
	"context"
	"sort"
	"time"

	"go.uber.org/fx"

	"github.com/Additional-Code/pincer/internal/entity"
	repo "github.com/Additional-Code/pincer/internal/repository/order"
	"github.com/Additional-Code/pincer/internal/timeservice"
	"github.com/Additional-Code/pincer/pkg/errorbank"
)

const (
	recentWindow = 21 * 24 * time.Hour
	recentLimit  = 3
)

// Orders lists a user's orders, newest first.
type Orders interface {
	FindAllByUser(ctx context.Context, uid string) ([]entity.Order, error)
}

// Details is the profile summary of a user.
type Details struct {
	Orders          int    `json:"orders"`
	Accepted        int    `json:"accepted"`
	TotalSpent      int    `json:"totalSpent"`
	TotalItems      int    `json:"totalItems"`
	FavouriteCircle string `json:"favouriteCircle"`
}

// Service computes order statistics.
type Service struct {
	orders Orders
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders *repo.Repository
	Clock  *timeservice.Service
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Orders, p.Clock.Now)
}

// New builds a Service over orders.
func New(orders Orders, now func() time.Time) *Service {
	return &Service{orders: orders, now: now}
}

// DetailsForUser summarizes every order of the user. Spending counts orders
// that were accepted or already shipped.
func (s *Service) DetailsForUser(ctx context.Context, user *entity.User) (Details, error) {
	orders, err := s.load(ctx, user)
	if err != nil {
		return Details{}, err
	}
	return Summarize(orders), nil
}

// RecentOrders returns the user's latest accepted orders from the past three
// weeks.
func (s *Service) RecentOrders(ctx context.Context, user *entity.User) ([]entity.Order, error) {
	orders, err := s.load(ctx, user)
	if err != nil {
		return nil, err
	}
	since := s.now().Add(-recentWindow)
	recent := make([]entity.Order, 0, recentLimit)
	for _, o := range orders {
		if o.Status != entity.OrderStatusAccepted || o.CreatedAt.Before(since) {
			continue
		}
		recent = append(recent, o)
		if len(recent) == recentLimit {
			break
		}
	}
	return recent, nil
}

func (s *Service) load(ctx context.Context, user *entity.User) ([]entity.Order, error) {
	if user == nil {
		return nil, errorbank.Forbidden("login required")
	}
	orders, err := s.orders.FindAllByUser(ctx, user.UID)
	if err != nil {
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// Summarize folds orders into Details.
func Summarize(orders []entity.Order) Details {
	d := Details{Orders: len(orders)}
	perCircle := make(map[string]int)
	for _, o := range orders {
		if o.Status == entity.OrderStatusAccepted {
			d.Accepted++
		}
		if o.Status != entity.OrderStatusAccepted && o.Status != entity.OrderStatusShipped {
			continue
		}
		d.TotalSpent += o.Price
		d.TotalItems += o.Count
		if o.Item != nil && o.Item.Circle != nil {
			perCircle[o.Item.Circle.DisplayName] += o.Count
		}
	}

	names := make([]string, 0, len(perCircle))
	for name := range perCircle {
		names = append(names, name)
	}
	sort.Strings(names)
	best := 0
	for _, name := range names {
		if perCircle[name] > best {
			d.FavouriteCircle, best = name, perCircle[name]
		}
	}
	return d
}
