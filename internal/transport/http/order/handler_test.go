package order

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/entity"
	service "github.com/Additional-Code/pincer/internal/service/order"
	"github.com/Additional-Code/pincer/internal/session"
	"github.com/Additional-Code/pincer/pkg/errorbank"
)

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) MakeOrder(ctx context.Context, user *entity.User, req service.NewOrder) (*entity.Order, error) {
	args := m.Called(ctx, user, req)
	order, _ := args.Get(0).(*entity.Order)
	return order, args.Error(1)
}

func (m *mockOrders) MakeManualOrder(ctx context.Context, user *entity.User, req service.NewOrder, details string) (*entity.Order, error) {
	args := m.Called(ctx, user, req, details)
	order, _ := args.Get(0).(*entity.Order)
	return order, args.Error(1)
}

func (m *mockOrders) CancelOrder(ctx context.Context, user *entity.User, id int64) error {
	return m.Called(ctx, user, id).Error(0)
}

func (m *mockOrders) ChangeOrder(ctx context.Context, user *entity.User, id int64, room, comment string) error {
	return m.Called(ctx, user, id, room, comment).Error(0)
}

type mockRooms struct {
	mock.Mock
}

func (m *mockRooms) SetRoom(ctx context.Context, user *entity.User, room string) (*entity.User, error) {
	args := m.Called(ctx, user, room)
	u, _ := args.Get(0).(*entity.User)
	return u, args.Error(1)
}

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Save(ctx context.Context, user *entity.User) error {
	return m.Called(ctx, user).Error(0)
}

const testUserHeader = "X-Test-User"

type fixture struct {
	orders   *mockOrders
	rooms    *mockRooms
	sessions *mockSessions
	echo     *echo.Echo
}

func newFixture() *fixture {
	f := &fixture{orders: &mockOrders{}, rooms: &mockRooms{}, sessions: &mockSessions{}}
	h := &Handler{orders: f.orders, rooms: f.rooms, sessions: f.sessions, logger: zap.NewNop()}
	f.echo = echo.New()
	f.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if uid := c.Request().Header.Get(testUserHeader); uid != "" {
				session.WithUser(c, &entity.User{UID: uid, Name: "Alice", Room: "1204"})
			}
			return next(c)
		}
	})
	Register(f.echo, h)
	return f
}

func (f *fixture) postJSON(path, body, uid string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return f.do(req, uid)
}

func (f *fixture) postForm(path string, form url.Values, uid string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return f.do(req, uid)
}

func (f *fixture) do(req *http.Request, uid string) *httptest.ResponseRecorder {
	if uid != "" {
		req.Header.Set(testUserHeader, uid)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func TestAnonymousRequestsAreForbidden(t *testing.T) {
	f := newFixture()
	bodies := []string{
		`{"id":1,"time":2,"detailsJson":"{\"a\":1}"}`,
		`{"id":-1,"time":-1,"detailsJson":"{}"}`,
		`{}`,
	}
	for _, path := range []string{"/api/order", "/api/order/delete", "/api/order/change"} {
		for _, body := range bodies {
			rec := f.postJSON(path, body, "")
			assert.Equal(t, http.StatusForbidden, rec.Code, path)
			assert.Equal(t, "Error 403", rec.Body.String(), path)
		}
	}
	f.orders.AssertNotCalled(t, "MakeOrder", mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "ChangeOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMalformedOrdersNeverReachTheService(t *testing.T) {
	f := newFixture()
	for _, body := range []string{
		`{"id":-1,"time":2,"detailsJson":"{\"a\":1}"}`,
		`{"id":1,"time":-1,"detailsJson":"{\"a\":1}"}`,
		`{"id":1,"time":2,"detailsJson":"{}"}`,
		`{"id":1,"time":2}`,
		`{"id":1,"time":2,"detailsJson":""}`,
		`{"id":1,"time":2,"detailsJson":"{\"a\":1}","manualOrderDetails":{"name":"Bob"},"x":`,
	} {
		rec := f.postJSON("/api/order", body, "alice")
		assert.Equal(t, http.StatusOK, rec.Code, body)
		assert.Equal(t, "INTERNAL_ERROR", rec.Body.String(), body)
	}
	f.orders.AssertNotCalled(t, "MakeOrder", mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "MakeManualOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFormOrderIsPlaced(t *testing.T) {
	f := newFixture()
	want := service.NewOrder{ItemID: 7, TimeWindowID: 5, Count: 1, Comment: "no onion", DetailsJSON: `{"size":"1"}`}
	f.orders.On("MakeOrder", mock.Anything, mock.MatchedBy(func(u *entity.User) bool { return u.UID == "alice" }), want).
		Return(&entity.Order{ID: 1}, nil)

	rec := f.postForm("/api/order", url.Values{
		"id":          {"7"},
		"time":        {"5"},
		"comment":     {"no onion"},
		"detailsJson": {`{"size":"1"}`},
	}, "alice")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACK", rec.Body.String())
	f.orders.AssertExpectations(t)
}

func TestManualOrderSelectsManualFlow(t *testing.T) {
	f := newFixture()
	f.orders.On("MakeManualOrder", mock.Anything, mock.Anything, mock.Anything, `{"name":"Bob","room":"1502"}`).
		Return(&entity.Order{ID: 2}, nil)

	rec := f.postJSON("/api/order",
		`{"id":7,"time":5,"count":2,"detailsJson":"{\"size\":0}","manualOrderDetails":{"name":"Bob","room":"1502"}}`,
		"admin")

	assert.Equal(t, "ACK", rec.Body.String())
	f.orders.AssertExpectations(t)
	f.orders.AssertNotCalled(t, "MakeOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderFailureReasonIsReturnedVerbatim(t *testing.T) {
	f := newFixture()
	f.orders.On("MakeOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil, errorbank.OrderFailed(service.ReasonSoldOut))

	rec := f.postJSON("/api/order", `{"id":7,"time":5,"detailsJson":"{\"size\":0}"}`, "alice")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ReasonSoldOut, rec.Body.String())
}

func TestCancelAndChange(t *testing.T) {
	f := newFixture()
	f.orders.On("CancelOrder", mock.Anything, mock.Anything, int64(3)).Return(nil)
	f.orders.On("ChangeOrder", mock.Anything, mock.Anything, int64(4), "1502", "ring").Return(errorbank.OrderFailed(service.ReasonNotYourOrder))

	rec := f.postJSON("/api/order/delete", `{"id":3}`, "alice")
	assert.Equal(t, "ACK", rec.Body.String())

	rec = f.postJSON("/api/order/change", `{"id":4,"room":"1502","comment":"ring"}`, "alice")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ReasonNotYourOrder, rec.Body.String())
	f.orders.AssertExpectations(t)
}

func TestSetRoomSavesTheUpdatedSessionUser(t *testing.T) {
	f := newFixture()
	updated := &entity.User{UID: "alice", Room: "1319"}
	f.rooms.On("SetRoom", mock.Anything, mock.Anything, "1319").Return(updated, nil)
	f.sessions.On("Save", mock.Anything, updated).Return(nil)

	for _, path := range []string{"/user/room", "/api/user/room"} {
		rec := f.postJSON(path, `{"room":"1319"}`, "alice")
		assert.Equal(t, "ACK", rec.Body.String(), path)
	}
	f.sessions.AssertNumberOfCalls(t, "Save", 2)

	rec := f.postJSON("/user/room", `{"room":"1319"}`, "")
	assert.Equal(t, "REJECT", rec.Body.String())
}

func TestSetRoomRejectsServiceErrors(t *testing.T) {
	f := newFixture()
	f.rooms.On("SetRoom", mock.Anything, mock.Anything, mock.Anything).Return(nil, errorbank.BadRequest("room code is too long"))

	rec := f.postJSON("/user/room", `{"room":"x"}`, "alice")
	assert.Equal(t, "REJECT", rec.Body.String())
	f.sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
