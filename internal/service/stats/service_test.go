package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/pincer/internal/entity"
)

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) FindAllByUser(ctx context.Context, uid string) ([]entity.Order, error) {
	args := m.Called(ctx, uid)
	orders, _ := args.Get(0).([]entity.Order)
	return orders, args.Error(1)
}

func itemOf(circle string) *entity.Item {
	return &entity.Item{Circle: &entity.Circle{DisplayName: circle}}
}

func TestSummarize(t *testing.T) {
	d := Summarize([]entity.Order{
		{Status: entity.OrderStatusAccepted, Count: 1, Price: 900, Item: itemOf("Vödör")},
		{Status: entity.OrderStatusShipped, Count: 2, Price: 2400, Item: itemOf("Pizzásch")},
		{Status: entity.OrderStatusCancelled, Count: 5, Price: 5000, Item: itemOf("Vödör")},
		{Status: entity.OrderStatusAccepted, Count: 1, Price: 1000},
	})

	assert.Equal(t, Details{
		Orders:          4,
		Accepted:        2,
		TotalSpent:      4300,
		TotalItems:      4,
		FavouriteCircle: "Pizzásch",
	}, d)
}

func TestSummarizeTieBreaksByName(t *testing.T) {
	d := Summarize([]entity.Order{
		{Status: entity.OrderStatusAccepted, Count: 1, Item: itemOf("Vödör")},
		{Status: entity.OrderStatusAccepted, Count: 1, Item: itemOf("Americano")},
	})
	assert.Equal(t, "Americano", d.FavouriteCircle)
	assert.Empty(t, Summarize(nil).FavouriteCircle)
}

func TestRecentOrders(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	orders := []entity.Order{
		{ID: 1, Status: entity.OrderStatusAccepted, CreatedAt: now.Add(-time.Hour)},
		{ID: 2, Status: entity.OrderStatusCancelled, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: 3, Status: entity.OrderStatusAccepted, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: 4, Status: entity.OrderStatusAccepted, CreatedAt: now.Add(-72 * time.Hour)},
		{ID: 5, Status: entity.OrderStatusAccepted, CreatedAt: now.Add(-96 * time.Hour)},
	}
	store := &mockOrders{}
	store.On("FindAllByUser", mock.Anything, "alice").Return(orders, nil)
	svc := New(store, func() time.Time { return now })

	recent, err := svc.RecentOrders(context.Background(), &entity.User{UID: "alice"})
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []int64{1, 3, 4}, []int64{recent[0].ID, recent[1].ID, recent[2].ID})

	old := []entity.Order{{ID: 9, Status: entity.OrderStatusAccepted, CreatedAt: now.Add(-22 * 24 * time.Hour)}}
	store = &mockOrders{}
	store.On("FindAllByUser", mock.Anything, "bob").Return(old, nil)
	recent, err = New(store, func() time.Time { return now }).RecentOrders(context.Background(), &entity.User{UID: "bob"})
	require.NoError(t, err)
	assert.Empty(t, recent)
}
