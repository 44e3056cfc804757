// Package worker runs the message consumers of the service.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/messaging"
)

const maxBackoff = 30 * time.Second

// HandlerRegistration binds message topics to handlers.
type HandlerRegistration struct {
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine fans messages of the bus out to the registered handlers.
type Engine struct {
	client        messaging.Client
	logger        *zap.Logger
	enabled       bool
	concurrency   int
	retryAfter    time.Duration
	registrations map[string][]messaging.Handler
	processed     metric.Int64Counter

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine constructs the worker Engine. Several handlers may share a topic;
// each of them sees every message.
func NewEngine(p Params) *Engine {
	reg := make(map[string][]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		reg[r.Topic] = append(reg[r.Topic], r.Handler)
	}

	processed, err := otel.Meter("github.com/Additional-Code/pincer/worker").
		Int64Counter("pincer.worker.messages", metric.WithDescription("Messages handled by the worker engine"))
	if err != nil {
		processed, _ = noop.NewMeterProvider().Meter("worker").Int64Counter("pincer.worker.messages")
	}

	concurrency := p.Config.Messaging.Workers.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	retryAfter := p.Config.Messaging.Workers.PollInterval
	if retryAfter <= 0 {
		retryAfter = time.Second
	}

	return &Engine{
		client:        p.Client,
		logger:        p.Logger,
		enabled:       p.Config.Messaging.Enabled && p.Config.Messaging.Workers.Enabled,
		concurrency:   concurrency,
		retryAfter:    retryAfter,
		registrations: reg,
		processed:     processed,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.Start,
			OnStop:  engine.Stop,
		})
	}),
)

// Start launches the consumer goroutines. It returns immediately.
func (e *Engine) Start(context.Context) error {
	if !e.enabled {
		e.logger.Info("worker engine disabled")
		return nil
	}
	if len(e.registrations) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return errors.New("worker engine already started")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	for i := 0; i < e.concurrency; i++ {
		e.wg.Add(1)
		go func(workerID int) {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}(i)
	}

	e.logger.Info("worker engine started", zap.Int("workers", e.concurrency), zap.Int("topics", len(e.registrations)))
	return nil
}

// Stop cancels the consumers and waits for them until ctx ends.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")
		return nil
	}
}

// Dispatch runs every handler of the message's topic. The first failure is
// returned after all handlers ran.
func (e *Engine) Dispatch(ctx context.Context, workerID int, msg messaging.Message) error {
	handlers, ok := e.registrations[msg.Topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", msg.Topic))
		e.record(ctx, msg.Topic, "unhandled")
		return nil
	}

	e.logger.Debug("processing message",
		zap.String("topic", msg.Topic),
		zap.Int64("offset", msg.Offset),
		zap.Int("worker", workerID),
	)

	var first error
	for _, handle := range handlers {
		if err := handle(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		e.record(ctx, msg.Topic, "failed")
		return first
	}
	e.record(ctx, msg.Topic, "ok")
	return nil
}

func (e *Engine) record(ctx context.Context, topic, outcome string) {
	e.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("outcome", outcome),
	))
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := e.retryAfter
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			return e.Dispatch(msgCtx, workerID, msg)
		})
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Int("worker", workerID), zap.Duration("retry_in", backoff), zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
