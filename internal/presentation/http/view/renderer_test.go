package view

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/pincer/internal/entity"
	"github.com/Additional-Code/pincer/internal/timeservice"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	clock := timeservice.NewWithClock(time.UTC, func() time.Time {
		return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	})
	r, err := New(clock)
	require.NoError(t, err)
	return r
}

func TestEveryPageParses(t *testing.T) {
	r := newRenderer(t)
	for _, name := range []string{"index", "items", "szor", "circle", "profile", "stats"} {
		assert.Contains(t, r.pages, name)
	}
	assert.NotContains(t, r.pages, "layout")
}

func TestRenderWrapsContentInLayout(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer

	err := r.Render(&buf, "circle", Page{
		Title:   "Pizzásch",
		Circles: []entity.Circle{{DisplayName: "Pizzásch", Alias: "pizzasch"}},
		Body: struct {
			Circle *entity.Circle
			Next   *entity.Opening
			Card   string
		}{
			Circle: &entity.Circle{ID: 3, DisplayName: "Pizzásch", Description: "<b>pizza</b>"},
			Next:   &entity.Opening{DateStart: time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC)},
			Card:   "DO",
		},
	}, nil)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "<title>Pizzásch | SCHPincér</title>")
	assert.Contains(t, html, `href="/p/pizzasch"`)
	assert.Contains(t, html, "2026-10-15 18:00")
	assert.Contains(t, html, "&lt;b&gt;pizza&lt;/b&gt;")
}

func TestRenderUnknownPage(t *testing.T) {
	r := newRenderer(t)
	assert.Error(t, r.Render(&bytes.Buffer{}, "missing", Page{}, nil))
}

func TestPrice(t *testing.T) {
	assert.Equal(t, "0 JMF", Price(0))
	assert.Equal(t, "850 JMF", Price(850))
	assert.Equal(t, "1 200 JMF", Price(1200))
	assert.Equal(t, "100 000 JMF", Price(100000))
	assert.Equal(t, "-1 500 JMF", Price(-1500))
}
