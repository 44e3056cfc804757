package order

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/pincer/internal/config"
	"github.com/Additional-Code/pincer/internal/entity"
	"github.com/Additional-Code/pincer/internal/messaging"
	itemrepo "github.com/Additional-Code/pincer/internal/repository/item"
	repo "github.com/Additional-Code/pincer/internal/repository/order"
	"github.com/Additional-Code/pincer/pkg/errorbank"
)

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Place(ctx context.Context, openingID int64, decide repo.Decision) (*entity.Order, error) {
	args := m.Called(ctx, openingID)
	opening, _ := args.Get(0).(*entity.Opening)
	orders, _ := args.Get(1).([]entity.Order)
	order, err := decide(opening, orders)
	if err != nil {
		return nil, err
	}
	order.ID = 99
	return order, nil
}

func (m *mockStore) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	args := m.Called(ctx, id)
	order, _ := args.Get(0).(*entity.Order)
	return order, args.Error(1)
}

func (m *mockStore) FindAllByOpening(ctx context.Context, openingID int64) ([]entity.Order, error) {
	args := m.Called(ctx, openingID)
	orders, _ := args.Get(0).([]entity.Order)
	return orders, args.Error(1)
}

func (m *mockStore) FindAllByUser(ctx context.Context, uid string) ([]entity.Order, error) {
	args := m.Called(ctx, uid)
	orders, _ := args.Get(0).([]entity.Order)
	return orders, args.Error(1)
}

func (m *mockStore) UpdateStatus(ctx context.Context, id int64, status entity.OrderStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockStore) UpdateRoomAndComment(ctx context.Context, id int64, room, comment string) error {
	return m.Called(ctx, id, room, comment).Error(0)
}

type mockItems struct {
	mock.Mock
}

func (m *mockItems) GetByID(ctx context.Context, id int64) (*entity.Item, error) {
	args := m.Called(ctx, id)
	item, _ := args.Get(0).(*entity.Item)
	return item, args.Error(1)
}

type mockOpenings struct {
	mock.Mock
}

func (m *mockOpenings) GetByID(ctx context.Context, id int64) (*entity.Opening, error) {
	args := m.Called(ctx, id)
	opening, _ := args.Get(0).(*entity.Opening)
	return opening, args.Error(1)
}

func (m *mockOpenings) GetTimeWindow(ctx context.Context, id int64) (*entity.TimeWindow, error) {
	args := m.Called(ctx, id)
	window, _ := args.Get(0).(*entity.TimeWindow)
	return window, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, key []byte, value []byte) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *mockPublisher) Consume(ctx context.Context, handler messaging.Handler) error {
	return m.Called(ctx, handler).Error(0)
}

func (m *mockPublisher) Topic() string {
	return "pincer.orders"
}

type fixture struct {
	store     *mockStore
	items     *mockItems
	openings  *mockOpenings
	publisher *mockPublisher
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		store:     &mockStore{},
		items:     &mockItems{},
		openings:  &mockOpenings{},
		publisher: &mockPublisher{},
	}
	cfg := config.Config{Messaging: config.Messaging{Enabled: true, Kafka: config.Kafka{Topic: "pincer.orders"}}}
	f.svc = New(f.store, f.items, f.openings, func() time.Time { return now }, f.publisher, cfg, nil)
	return f
}

func pizza() *entity.Item {
	return &entity.Item{
		ID:                7,
		CircleID:          3,
		Name:              "Pizza",
		Price:             1200,
		Orderable:         true,
		Category:          int(entity.CategoryAlpha),
		DetailsConfigJSON: `[{"name":"size","type":"EXTRA_SELECT","values":["S","L"],"prices":[0,300]}]`,
	}
}

func openingFor(circleID int64) *entity.Opening {
	return &entity.Opening{
		ID:         11,
		CircleID:   circleID,
		OrderStart: now.Add(-time.Hour),
		OrderEnd:   now.Add(time.Hour),
		MaxOrder:   10,
		MaxAlpha:   2,
	}
}

func (f *fixture) expectLookup(item *entity.Item, opening *entity.Opening) {
	f.items.On("GetByID", mock.Anything, item.ID).Return(item, nil)
	f.openings.On("GetTimeWindow", mock.Anything, int64(5)).Return(&entity.TimeWindow{ID: 5, OpeningID: opening.ID}, nil)
	f.openings.On("GetByID", mock.Anything, opening.ID).Return(opening, nil)
}

func request() NewOrder {
	return NewOrder{ItemID: 7, TimeWindowID: 5, Count: 2, Comment: "no onion", DetailsJSON: `{"size":1}`}
}

func alice() *entity.User {
	return &entity.User{UID: "alice", Name: "Alice", Room: "1319"}
}

func assertReason(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errorbank.IsKind(err, errorbank.KindOrderFailed), "unexpected error %v", err)
	assert.Equal(t, reason, errorbank.From(err).Message())
}

func TestMakeOrderPlacesAndPublishes(t *testing.T) {
	f := newFixture()
	opening := openingFor(3)
	f.expectLookup(pizza(), opening)
	f.store.On("Place", mock.Anything, int64(11)).Return(opening, []entity.Order(nil))

	var published Event
	f.publisher.On("Publish", mock.Anything, []byte("order-99"), mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, json.Unmarshal(args.Get(2).([]byte), &published))
		}).
		Return(nil)

	order, err := f.svc.MakeOrder(context.Background(), alice(), request())
	require.NoError(t, err)

	assert.Equal(t, int64(99), order.ID)
	assert.Equal(t, (1200+300)*2, order.Price)
	assert.Equal(t, entity.OrderStatusAccepted, order.Status)
	assert.Equal(t, "1319", order.Room)
	assert.Equal(t, int64(5), order.TimeWindowID)
	assert.Equal(t, EventOrderCreated, published.Type)
	assert.Equal(t, "alice", published.UserID)
	assert.NotEmpty(t, published.EventID)
	f.publisher.AssertExpectations(t)
}

func TestMakeOrderRefusals(t *testing.T) {
	other := func(category entity.ItemCategory, count int) entity.Order {
		return entity.Order{
			UserID: "bob",
			Count:  count,
			Status: entity.OrderStatusAccepted,
			Item:   &entity.Item{Category: int(category)},
		}
	}

	cases := []struct {
		name   string
		orders []entity.Order
		reason string
	}{
		{
			name:   "overall capacity exhausted",
			orders: []entity.Order{other(entity.CategoryDefault, 9)},
			reason: ReasonSoldOut,
		},
		{
			name:   "category capacity exhausted",
			orders: []entity.Order{other(entity.CategoryDefault, 1), other(entity.CategoryAlpha, 1)},
			reason: ReasonCategorySoldOut,
		},
		{
			name:   "one order per user",
			orders: []entity.Order{{UserID: "alice", Count: 1, Status: entity.OrderStatusAccepted}},
			reason: ReasonDuplicate,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			opening := openingFor(3)
			f.expectLookup(pizza(), opening)
			f.store.On("Place", mock.Anything, int64(11)).Return(opening, tc.orders)

			_, err := f.svc.MakeOrder(context.Background(), alice(), request())
			assertReason(t, err, tc.reason)
			f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestMakeOrderCancelledOrdersDoNotBlock(t *testing.T) {
	f := newFixture()
	opening := openingFor(3)
	f.expectLookup(pizza(), opening)
	f.store.On("Place", mock.Anything, int64(11)).Return(opening, []entity.Order{
		{UserID: "alice", Count: 9, Status: entity.OrderStatusCancelled},
	})
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.MakeOrder(context.Background(), alice(), request())
	require.NoError(t, err)
}

func TestMakeOrderOutsideOrderWindow(t *testing.T) {
	f := newFixture()
	opening := openingFor(3)
	opening.OrderEnd = now
	f.expectLookup(pizza(), opening)

	_, err := f.svc.MakeOrder(context.Background(), alice(), request())
	assertReason(t, err, ReasonClosed)
	f.store.AssertNotCalled(t, "Place", mock.Anything, mock.Anything)
}

func TestMakeOrderValidation(t *testing.T) {
	t.Run("time slot of another circle", func(t *testing.T) {
		f := newFixture()
		f.expectLookup(pizza(), openingFor(4))
		_, err := f.svc.MakeOrder(context.Background(), alice(), request())
		assertReason(t, err, ReasonInvalidTimeSlot)
	})

	t.Run("unknown item", func(t *testing.T) {
		f := newFixture()
		f.items.On("GetByID", mock.Anything, int64(7)).Return(nil, itemrepo.ErrNotFound)
		_, err := f.svc.MakeOrder(context.Background(), alice(), request())
		assertReason(t, err, ReasonItemNotFound)
	})

	t.Run("item not orderable", func(t *testing.T) {
		f := newFixture()
		item := pizza()
		item.Orderable = false
		f.items.On("GetByID", mock.Anything, int64(7)).Return(item, nil)
		_, err := f.svc.MakeOrder(context.Background(), alice(), request())
		assertReason(t, err, ReasonNotOrderable)
	})

	t.Run("zero count", func(t *testing.T) {
		f := newFixture()
		req := request()
		req.Count = 0
		_, err := f.svc.MakeOrder(context.Background(), alice(), req)
		assertReason(t, err, ReasonInvalidCount)
		f.items.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("option out of range", func(t *testing.T) {
		f := newFixture()
		f.expectLookup(pizza(), openingFor(3))
		req := request()
		req.DetailsJSON = `{"size":5}`
		_, err := f.svc.MakeOrder(context.Background(), alice(), req)
		assertReason(t, err, ReasonInvalidDetails)
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.MakeOrder(context.Background(), nil, request())
		assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))
	})
}

func TestMakeManualOrder(t *testing.T) {
	t.Run("circle admin ignores the order window and the per-user limit", func(t *testing.T) {
		f := newFixture()
		opening := openingFor(3)
		opening.OrderEnd = now.Add(-time.Minute)
		f.expectLookup(pizza(), opening)
		f.store.On("Place", mock.Anything, int64(11)).Return(opening, []entity.Order{
			{UserID: "admin", Count: 1, Status: entity.OrderStatusAccepted},
		})
		f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		admin := &entity.User{UID: "admin", Permissions: []int64{3}}
		order, err := f.svc.MakeManualOrder(context.Background(), admin, request(), "Bob, room 1204")
		require.NoError(t, err)
		assert.True(t, order.Manual)
		assert.Equal(t, "Bob, room 1204", order.ManualDetails)
	})

	t.Run("requires circle permission", func(t *testing.T) {
		f := newFixture()
		f.expectLookup(pizza(), openingFor(3))
		_, err := f.svc.MakeManualOrder(context.Background(), alice(), request(), "Bob")
		assertReason(t, err, ReasonNotPermitted)
		f.store.AssertNotCalled(t, "Place", mock.Anything, mock.Anything)
	})
}

func TestCancelOrder(t *testing.T) {
	accepted := func() *entity.Order {
		return &entity.Order{ID: 3, UserID: "alice", OpeningID: 11, Status: entity.OrderStatusAccepted}
	}

	t.Run("owner cancels before the order window closes", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetByID", mock.Anything, int64(3)).Return(accepted(), nil)
		f.openings.On("GetByID", mock.Anything, int64(11)).Return(openingFor(3), nil)
		f.store.On("UpdateStatus", mock.Anything, int64(3), entity.OrderStatusCancelled).Return(nil)
		f.publisher.On("Publish", mock.Anything, []byte("order-3"), mock.Anything).Return(nil)

		require.NoError(t, f.svc.CancelOrder(context.Background(), alice(), 3))
		f.store.AssertExpectations(t)
	})

	t.Run("someone else's order", func(t *testing.T) {
		f := newFixture()
		order := accepted()
		order.UserID = "bob"
		f.store.On("GetByID", mock.Anything, int64(3)).Return(order, nil)

		assertReason(t, f.svc.CancelOrder(context.Background(), alice(), 3), ReasonNotYourOrder)
	})

	t.Run("already cancelled", func(t *testing.T) {
		f := newFixture()
		order := accepted()
		order.Status = entity.OrderStatusCancelled
		f.store.On("GetByID", mock.Anything, int64(3)).Return(order, nil)

		assertReason(t, f.svc.CancelOrder(context.Background(), alice(), 3), ReasonCannotChange)
	})

	t.Run("after the order window", func(t *testing.T) {
		f := newFixture()
		opening := openingFor(3)
		opening.OrderEnd = now.Add(-time.Second)
		f.store.On("GetByID", mock.Anything, int64(3)).Return(accepted(), nil)
		f.openings.On("GetByID", mock.Anything, int64(11)).Return(opening, nil)

		assertReason(t, f.svc.CancelOrder(context.Background(), alice(), 3), ReasonCannotChange)
		f.store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing order", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetByID", mock.Anything, int64(3)).Return(nil, repo.ErrNotFound)

		assertReason(t, f.svc.CancelOrder(context.Background(), alice(), 3), ReasonOrderNotFound)
	})
}

func TestChangeOrder(t *testing.T) {
	f := newFixture()
	f.store.On("GetByID", mock.Anything, int64(3)).Return(&entity.Order{ID: 3, UserID: "alice", OpeningID: 11, Status: entity.OrderStatusAccepted}, nil)
	f.openings.On("GetByID", mock.Anything, int64(11)).Return(openingFor(3), nil)
	f.store.On("UpdateRoomAndComment", mock.Anything, int64(3), "1502", "ring twice").Return(nil)
	f.publisher.On("Publish", mock.Anything, []byte("order-3"), mock.Anything).Return(nil)

	require.NoError(t, f.svc.ChangeOrder(context.Background(), alice(), 3, "1502", "ring twice"))
	f.store.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestAdmitIgnoresManualOrdersForPerUserLimit(t *testing.T) {
	opening := &entity.Opening{MaxOrder: 5}
	orders := []entity.Order{{UserID: "alice", Count: 1, Status: entity.OrderStatusAccepted, Manual: true}}

	err := Admit(opening, orders, &entity.Order{UserID: "alice", Count: 1}, entity.CategoryDefault)
	assert.NoError(t, err)

	err = Admit(opening, orders, &entity.Order{UserID: "alice", Count: 5}, entity.CategoryDefault)
	assertReason(t, err, ReasonSoldOut)
}
