package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/messaging"
	ordersvc "github.com/Additional-Code/pincer/internal/service/order"
	"github.com/Additional-Code/pincer/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/pincer/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewEventHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewEventHandler sets up a worker handler that records order lifecycle events.
func NewEventHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handleEvent(logger),
	}
}

func handleEvent(logger *zap.Logger) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) error {
		_, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		span.SetAttributes(
			attribute.String("order.event", event.Type),
			attribute.Int64("order.id", event.OrderID),
		)

		fields := []zap.Field{
			zap.String("event_id", event.EventID),
			zap.Int64("order_id", event.OrderID),
			zap.Int64("opening_id", event.OpeningID),
			zap.String("uid", event.UserID),
			zap.String("status", event.Status),
		}
		switch event.Type {
		case ordersvc.EventOrderCreated:
			logger.Info("order placed", append(fields,
				zap.Int64("item_id", event.ItemID),
				zap.Int("count", event.Count),
				zap.Int("price", event.Price),
				zap.Bool("manual", event.Manual),
			)...)
		case ordersvc.EventOrderCancelled:
			logger.Info("order cancelled", fields...)
		case ordersvc.EventOrderChanged:
			logger.Info("order changed", fields...)
		default:
			logger.Warn("unknown order event", append(fields, zap.String("type", event.Type))...)
		}
		return nil
	}
}
