package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/entity"
)

// Event types published on the order topic.
const (
	EventOrderCreated   = "order.created"
	EventOrderCancelled = "order.cancelled"
	EventOrderChanged   = "order.changed"
)

// Event describes a change to an order.
type Event struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	OrderID    int64     `json:"order_id"`
	OpeningID  int64     `json:"opening_id"`
	ItemID     int64     `json:"item_id"`
	UserID     string    `json:"user_id"`
	Count      int       `json:"count"`
	Price      int       `json:"price"`
	Status     string    `json:"status"`
	Manual     bool      `json:"manual"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *Service) publish(ctx context.Context, eventType string, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := Event{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OrderID:    order.ID,
		OpeningID:  order.OpeningID,
		ItemID:     order.ItemID,
		UserID:     order.UserID,
		Count:      order.Count,
		Price:      order.Price,
		Status:     string(order.Status),
		Manual:     order.Manual,
		OccurredAt: s.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish order event", zap.String("type", eventType), zap.Error(err))
	}
}
