// Package view renders the server-side HTML pages.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/pincer/internal/entity"
	"github.com/Additional-Code/pincer/internal/timeservice"
)

//go:embed templates/*.html
var files embed.FS

const layoutFile = "layout.html"

// Module provides the page renderer.
var Module = fx.Provide(New)

// Page is the data every template receives.
type Page struct {
	Title   string
	User    *entity.User
	Circles []entity.Circle
	Body    any
}

// Renderer implements echo.Renderer over the embedded templates. Each page is
// parsed together with the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every embedded page.
func New(clock *timeservice.Service) (*Renderer, error) {
	funcs := template.FuncMap{
		"date":  func(t time.Time) string { return clock.Format(t, "2006-01-02 15:04") },
		"clock": func(t time.Time) string { return clock.Format(t, "15:04") },
		"day":   clock.DayName,
		"price": Price,
	}

	names, err := fs.Glob(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		base := path.Base(name)
		if base == layoutFile {
			continue
		}
		tmpl, err := template.New(base).Funcs(funcs).ParseFS(files, "templates/"+layoutFile, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", base, err)
		}
		pages[strings.TrimSuffix(base, ".html")] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Render executes the layout of the named page.
func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

// Price formats an amount in forints with thin-space grouping.
func Price(amount int) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprint(amount)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(d)
	}
	return sign + b.String() + " JMF"
}
