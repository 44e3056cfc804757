package diag

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Additional-Code/pincer/internal/counter"
	"github.com/Additional-Code/pincer/internal/entity"
	"github.com/Additional-Code/pincer/internal/ratelimit"
	"github.com/Additional-Code/pincer/internal/session"
	"github.com/Additional-Code/pincer/internal/timeservice"
)

const adminHeader = "X-Test-Admin"

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func newEcho(store counter.Store) *echo.Echo {
	h := &Handler{
		counters: store,
		clock:    timeservice.NewWithClock(time.UTC, func() time.Time { return now }),
		version:  "1.4.2",
		votes:    ratelimit.New(100, 100),
		logger:   zap.NewNop(),
	}
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(adminHeader) != "" {
				session.WithUser(c, &entity.User{UID: "root", Sysadmin: true})
			}
			return next(c)
		}
	})
	Register(e, h)
	return e
}

func do(e *echo.Echo, method, target, remote string, admin bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = remote
	if admin {
		req.Header.Set(adminHeader, "1")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestVersionAndTime(t *testing.T) {
	e := newEcho(counter.NewMemoryStore())

	for _, path := range []string{"/version", "/api/version"} {
		rec := do(e, http.MethodGet, path, "192.0.2.1:5000", false)
		assert.Equal(t, "Version: 1.4.2", rec.Body.String(), path)
	}

	want := fmt.Sprintf("Time: 2026-10-14 12:00:00.000 +0000\nTimestamp: %d", now.UnixMilli())
	for _, path := range []string{"/time", "/api/time"} {
		rec := do(e, http.MethodGet, path, "192.0.2.1:5000", false)
		assert.Equal(t, want, rec.Body.String(), path)
	}
}

func TestVotesAreTalliedForSysadmins(t *testing.T) {
	e := newEcho(counter.NewMemoryStore())

	assert.Equal(t, "OK", do(e, http.MethodPost, "/api/easteregg/trashpanda/3", "192.0.2.1:5000", false).Body.String())
	assert.Equal(t, "OK", do(e, http.MethodPost, "/api/easteregg/trashpanda/4", "192.0.2.1:5001", false).Body.String())
	assert.Equal(t, "OK", do(e, http.MethodPost, "/api/easteregg/trashpanda/1", "192.0.2.1:5002", false).Body.String())
	assert.Equal(t, "OK", do(e, http.MethodPost, "/api/easteregg/trashpanda/9", "192.0.2.2:5000", false).Body.String())

	rec := do(e, http.MethodGet, "/api/admin/trashpanda", "192.0.2.3:5000", true)
	assert.Equal(t, "Good: 1 Bad: 0 OK: 0 Side: 0 HACK: 1", rec.Body.String())

	rec = do(e, http.MethodGet, "/api/admin/trashpanda/raw", "192.0.2.3:5000", true)
	assert.Equal(t, "[192.0.2.1=1, 192.0.2.2=9]", rec.Body.String())
}

func TestAdminEndpointsRejectOthers(t *testing.T) {
	e := newEcho(counter.NewMemoryStore())

	for _, path := range []string{"/api/admin/trashpanda", "/api/admin/trashpanda/raw"} {
		rec := do(e, http.MethodGet, path, "192.0.2.1:5000", false)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, NotAllowedBody, rec.Body.String())
	}
}

func TestVoteRejectsNonNumericFeedback(t *testing.T) {
	store := counter.NewMemoryStore()
	e := newEcho(store)

	rec := do(e, http.MethodPost, "/api/easteregg/trashpanda/lots", "192.0.2.1:5000", false)
	assert.Equal(t, "INTERNAL_ERROR", rec.Body.String())

	votes, err := store.Votes(t.Context())
	assert.NoError(t, err)
	assert.Empty(t, votes)
}
