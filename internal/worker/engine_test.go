package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/messaging"
)

func enabledConfig(workers int) config.Config {
	var cfg config.Config
	cfg.Messaging.Enabled = true
	cfg.Messaging.Workers.Enabled = true
	cfg.Messaging.Workers.Concurrency = workers
	return cfg
}

func TestEngineDeliversToEveryHandlerOfTopic(t *testing.T) {
	client := messaging.NewMemoryClient("orders", 8)
	var audit, notify atomic.Int32

	engine := NewEngine(Params{
		Client: client,
		Logger: zap.NewNop(),
		Config: enabledConfig(2),
		Registrations: []HandlerRegistration{
			{Topic: "orders", Handler: func(context.Context, messaging.Message) error { audit.Add(1); return nil }},
			{Topic: "orders", Handler: func(context.Context, messaging.Message) error { notify.Add(1); return nil }},
			{Topic: "", Handler: func(context.Context, messaging.Message) error { t.Error("blank topic registered"); return nil }},
		},
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, client.Publish(context.Background(), nil, []byte("{}")))
	}
	require.NoError(t, engine.Start(context.Background()))
	assert.Error(t, engine.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return audit.Load() == 3 && notify.Load() == 3
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, engine.Stop(ctx))
	require.NoError(t, engine.Stop(ctx))
}

func TestDispatchReportsFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	engine := NewEngine(Params{
		Client: messaging.NewMemoryClient("orders", 1),
		Logger: zap.NewNop(),
		Config: enabledConfig(1),
		Registrations: []HandlerRegistration{
			{Topic: "orders", Handler: func(context.Context, messaging.Message) error { calls++; return boom }},
			{Topic: "orders", Handler: func(context.Context, messaging.Message) error { calls++; return nil }},
		},
	})

	err := engine.Dispatch(context.Background(), 0, messaging.Message{Topic: "orders"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)

	assert.NoError(t, engine.Dispatch(context.Background(), 0, messaging.Message{Topic: "payments"}))
}

func TestDisabledEngineDoesNotConsume(t *testing.T) {
	client := messaging.NewMemoryClient("orders", 1)
	require.NoError(t, client.Publish(context.Background(), nil, []byte("{}")))

	engine := NewEngine(Params{
		Client: client,
		Logger: zap.NewNop(),
		Config: config.Config{},
		Registrations: []HandlerRegistration{
			{Topic: "orders", Handler: func(context.Context, messaging.Message) error { return nil }},
		},
	})
	require.NoError(t, engine.Start(context.Background()))
	require.NoError(t, engine.Stop(context.Background()))
	assert.Equal(t, 1, client.Pending())
}
