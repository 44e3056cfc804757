package cli

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/Additional-Code/pincer/internal/entity"
)

func TestRootCommandListsTools(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"start", "migrate", "seed", "worker", "token", "availability"}, names)

	migrate, _, err := root.Find([]string{"migrate", "status"})
	require.NoError(t, err)
	assert.Equal(t, "status", migrate.Name())
}

func TestArgumentValidation(t *testing.T) {
	for _, args := range [][]string{{"token"}, {"availability"}, {"availability", "x"}} {
		root := NewRootCommand()
		root.SetArgs(args)
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		assert.Error(t, root.Execute(), args)
	}
}

func TestWriteAvailability(t *testing.T) {
	opening := &entity.Opening{ID: 7, MaxOrder: 20, MaxAlpha: 8, MaxBeta: 5}
	alpha := &entity.Item{Category: int(entity.CategoryAlpha)}
	orders := []entity.Order{
		{Count: 3, Status: entity.OrderStatusAccepted, Item: alpha},
		{Count: 9, Status: entity.OrderStatusCancelled, Item: alpha},
	}

	var out bytes.Buffer
	require.NoError(t, writeAvailability(&out, opening, orders))

	text := out.String()
	assert.Contains(t, text, "opening    7\n")
	assert.Contains(t, text, "accepted   3\n")
	assert.Contains(t, text, "available  5\n")
	assert.Contains(t, text, "ALPHA      5/8\n")
	assert.Contains(t, text, "BETA       5/5\n")
	assert.NotContains(t, text, "DEFAULT")
}

func stoppable(stopped *atomic.Bool) *fx.App {
	return fx.New(
		fx.NopLogger,
		fx.Invoke(func(lc fx.Lifecycle) {
			lc.Append(fx.Hook{OnStop: func(context.Context) error {
				stopped.Store(true)
				return nil
			}})
		}),
	)
}

func TestRunUntilDoneStopsWhenContextCancelled(t *testing.T) {
	var stopped atomic.Bool
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- runUntilDone(ctx, stoppable(&stopped)) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runUntilDone did not return after cancel")
	}
	assert.True(t, stopped.Load())
}

func TestExecuteContextReachesCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	root := NewRootCommand()
	var seen context.Context
	root.AddCommand(&cobra.Command{Use: "ctx", RunE: func(cmd *cobra.Command, _ []string) error {
		seen = cmd.Context()
		return nil
	}})
	root.SetArgs([]string{"ctx"})
	require.NoError(t, root.ExecuteContext(ctx))
	require.NotNil(t, seen.Done())
	assert.ErrorIs(t, seen.Err(), context.Canceled)
}
