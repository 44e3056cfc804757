package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/entity"
	"github.com/Additional-Code/pincer/internal/timeservice"
)

type mockOpenings struct {
	mock.Mock
}

func (m *mockOpenings) NextWeek(ctx context.Context) ([]entity.Opening, error) {
	args := m.Called(ctx)
	openings, _ := args.Get(0).([]entity.Opening)
	return openings, args.Error(1)
}

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) FindAllByOpening(ctx context.Context, openingID int64) ([]entity.Order, error) {
	args := m.Called(ctx, openingID)
	orders, _ := args.Get(0).([]entity.Order)
	return orders, args.Error(1)
}

var budapest, _ = time.LoadLocation("Europe/Budapest")

func newBuilder(openings *mockOpenings, orders *mockOrders, now time.Time) *Builder {
	clock := timeservice.NewWithClock(budapest, func() time.Time { return now })
	cfg := config.Pincer{APITokens: []string{"abc", " "}, BaseURL: "http://pincer.test/"}
	return New(openings, orders, clock, cfg, nil)
}

func accepted(count int) entity.Order {
	return entity.Order{Count: count, Status: entity.OrderStatusAccepted}
}

func TestOpeningsRejectsUnknownTokens(t *testing.T) {
	openings := &mockOpenings{}
	b := newBuilder(openings, &mockOrders{}, time.Now())

	for _, token := range []string{"", "   ", "nope", "abcd"} {
		got, err := b.Openings(context.Background(), token)
		require.NoError(t, err)
		require.Len(t, got, 1, "token %q", token)
		assert.Equal(t, InvalidToken(), got[0])
		assert.Equal(t, "Invalid Token", got[0].Name)
		assert.Nil(t, got[0].Icon)
		assert.Nil(t, got[0].Banner)
		assert.Equal(t, "sad", got[0].Feeling)
	}
	openings.AssertNotCalled(t, "NextWeek", mock.Anything)
}

func TestOpeningsBuildsVisibleEntries(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, budapest)
	pizza := &entity.Circle{ID: 7, DisplayName: "Pizzásch", Alias: "pizzasch", LogoURL: "cdn/logo.png", CSSClassName: "pizza"}
	openings := &mockOpenings{}
	openings.On("NextWeek", mock.Anything).Return([]entity.Opening{
		{
			ID:         1,
			Circle:     pizza,
			OrderStart: now.Add(-time.Hour),
			OrderEnd:   time.Date(2026, 10, 15, 18, 0, 0, 0, budapest),
			DateStart:  time.Date(2026, 10, 16, 19, 0, 0, 0, budapest),
			MaxOrder:   10,
			PrURL:      "cdn/pr.png",
			Feeling:    "hungry",
		},
		{ID: 2, OrderStart: now.Add(-time.Hour), MaxOrder: 10},
		{ID: 3, Circle: pizza, OrderStart: now.Add(-10 * time.Minute), CompensationTime: 30 * 60 * 1000, MaxOrder: 10},
		{ID: 4, Circle: &entity.Circle{ID: 9}, OrderStart: now.Add(-time.Hour), MaxOrder: 2},
	}, nil)
	orders := &mockOrders{}
	orders.On("FindAllByOpening", mock.Anything, int64(1)).Return([]entity.Order{accepted(3), {Count: 5, Status: entity.OrderStatusCancelled}}, nil).Once()
	orders.On("FindAllByOpening", mock.Anything, int64(4)).Return([]entity.Order{accepted(2)}, nil).Once()
	b := newBuilder(openings, orders, now)

	got, err := b.Openings(context.Background(), " abc ")
	require.NoError(t, err)
	require.Len(t, got, 1)

	d := got[0]
	assert.Equal(t, "Pizzásch", d.Name)
	require.NotNil(t, d.Icon)
	assert.Equal(t, "http://pincer.test/cdn/logo.png", *d.Icon)
	require.NotNil(t, d.Banner)
	assert.Equal(t, "http://pincer.test/cdn/pr.png", *d.Banner)
	assert.Equal(t, "hungry", d.Feeling)
	assert.Equal(t, 7, d.Available)
	assert.Equal(t, 10, d.OutOf)
	assert.Equal(t, "Péntek", d.Day)
	assert.Equal(t, "Csütörtök 18:00-ig rendelhető", d.Comment)
	assert.Equal(t, "http://pincer.test/p/pizzasch", d.CircleURL)
	assert.Equal(t, "pizza", d.CircleColor)
	orders.AssertExpectations(t)
}

func TestCircleURLAndColorFallbacks(t *testing.T) {
	b := newBuilder(&mockOpenings{}, &mockOrders{}, time.Now())
	assert.Equal(t, "http://pincer.test/p/7", b.CircleURL(&entity.Circle{ID: 7}))
	assert.Equal(t, "http://pincer.test/p/0", b.CircleURL(nil))
	assert.Equal(t, "none", circleColor(&entity.Circle{}))

	bare := b.detail(&entity.Opening{Circle: &entity.Circle{ID: 9}}, 1)
	require.NotNil(t, bare.Icon)
	require.NotNil(t, bare.Banner)
	assert.Equal(t, "http://pincer.test/", *bare.Icon)
	assert.Equal(t, "http://pincer.test/", *bare.Banner)
}

func TestDeadlineOfUnsetTime(t *testing.T) {
	b := newBuilder(&mockOpenings{}, &mockOrders{}, time.Now())
	assert.Equal(t, "n/a -ig rendelhető", b.Deadline(&entity.Opening{}))
}

func TestDeprecated(t *testing.T) {
	got := Deprecated()
	require.Len(t, got, 1)
	assert.Equal(t, "This feature is deprecated", got[0].Name)
	assert.Equal(t, "Contact the administrator if you think this is a problem", got[0].Comment)
}
