// Package timeservice owns the wall clock and the local-zone formatting used
// by pages and feeds.
package timeservice

import (
	"time"
	_ "time/tzdata"

	"go.uber.org/fx"

	"github.com/Additional-Code/pincer/internal/config"
)

// Module provides the time service to Fx.
var Module = fx.Provide(New)

var daysOfTheWeek = [...]string{"n/a", "Hétfő", "Kedd", "Szerda", "Csütörtök", "Péntek", "Szombat", "Vasárnap"}

// Service formats and queries timestamps in the configured zone.
type Service struct {
	loc *time.Location
	now func() time.Time
}

// New builds a Service for the configured time zone.
func New(cfg config.Config) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Pincer.TimeZone)
	if err != nil {
		return nil, err
	}
	return NewWithClock(loc, time.Now), nil
}

// NewWithClock builds a Service with an explicit zone and clock.
func NewWithClock(loc *time.Location, now func() time.Time) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Service{loc: loc, now: now}
}

// Now returns the current time in the configured zone.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

// Location returns the configured zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Format renders t with a Go layout in the configured zone. The zero time
// renders as an empty string.
func (s *Service) Format(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.In(s.loc).Format(layout)
}

// ISOWeekday returns 1 for Monday through 7 for Sunday, or 0 for the zero
// time.
func (s *Service) ISOWeekday(t time.Time) int {
	if t.IsZero() {
		return 0
	}
	wd := int(t.In(s.loc).Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// DayName returns the localized weekday name of t, or "n/a" when t is unset.
func (s *Service) DayName(t time.Time) string {
	return WeekdayName(s.ISOWeekday(t))
}

// WeekdayName looks up an ISO weekday index. Indices outside 1..7 yield "n/a".
func WeekdayName(index int) string {
	if index < 1 || index >= len(daysOfTheWeek) {
		return daysOfTheWeek[0]
	}
	return daysOfTheWeek[index]
}

// StartOfDay returns local midnight of the day containing t.
func (s *Service) StartOfDay(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}
