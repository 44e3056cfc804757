package user

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/database"
	"github.com/Additional-Code/pincer/internal/entity"
)

func newRepository(t *testing.T) *Repository {
	t.Helper()
	conns, err := database.Open(config.Database{
		Driver:       "sqlite",
		WriterDSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		MaxOpenConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	ctx := context.Background()
	_, err = conns.Writer.NewCreateTable().Model((*entity.User)(nil)).Exec(ctx)
	require.NoError(t, err)
	_, err = conns.Writer.NewInsert().Model(&entity.User{
		UID:         "u1",
		Name:        "Kiss Anna",
		CardType:    entity.CardAB,
		Permissions: []int64{3, 7},
	}).Exec(ctx)
	require.NoError(t, err)

	return NewRepository(conns)
}

func TestGetByUID(t *testing.T) {
	repo := newRepository(t)

	u, err := repo.GetByUID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Kiss Anna", u.Name)
	assert.Equal(t, entity.CardAB, u.CardType)
	assert.Equal(t, []int64{3, 7}, u.Permissions)
	assert.True(t, u.CanManage(7))

	_, err = repo.GetByUID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRoom(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.UpdateRoom(ctx, "u1", "1204"))
	u, err := repo.GetByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "1204", u.Room)

	assert.ErrorIs(t, repo.UpdateRoom(ctx, "ghost", "1"), ErrNotFound)
}
