package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Opening is a scheduled, capacity-bounded ordering window of a circle.
type Opening struct {
	bun.BaseModel `bun:"table:openings"`

	ID       int64   `bun:",pk,autoincrement" json:"id"`
	CircleID int64   `bun:"circle_id,notnull" json:"circleId"`
	Circle   *Circle `bun:"rel:belongs-to,join:circle_id=id" json:"circle,omitempty"`

	DateStart  time.Time `bun:"date_start,notnull" json:"dateStart"`
	DateEnd    time.Time `bun:"date_end,notnull" json:"dateEnd"`
	OrderStart time.Time `bun:"order_start,notnull" json:"orderStart"`
	OrderEnd   time.Time `bun:"order_end,notnull" json:"orderEnd"`

	PrURL   string `bun:"pr_url" json:"prUrl"`
	Feeling string `bun:"feeling" json:"feeling"`

	MaxOrder  int `bun:"max_order" json:"maxOrder"`
	MaxAlpha  int `bun:"max_alpha" json:"maxAlpha"`
	MaxBeta   int `bun:"max_beta" json:"maxBeta"`
	MaxGamma  int `bun:"max_gamma" json:"maxGamma"`
	MaxDelta  int `bun:"max_delta" json:"maxDelta"`
	MaxLambda int `bun:"max_lambda" json:"maxLambda"`

	// CompensationTime is stored in milliseconds.
	CompensationTime int64 `bun:"compensation_time" json:"compensationTime"`

	TimeWindows []*TimeWindow `bun:"rel:has-many,join:id=opening_id" json:"timeWindows,omitempty"`
}

// Compensation returns CompensationTime as a duration.
func (o *Opening) Compensation() time.Duration {
	return time.Duration(o.CompensationTime) * time.Millisecond
}

// VisibleAt reports whether the opening may be listed publicly at now.
func (o *Opening) VisibleAt(now time.Time) bool {
	return !o.OrderStart.Add(o.Compensation()).After(now)
}

// AcceptsOrdersAt reports whether now falls inside the order window.
func (o *Opening) AcceptsOrdersAt(now time.Time) bool {
	return !now.Before(o.OrderStart) && now.Before(o.OrderEnd)
}

// TimeWindow is a pickup slot inside an opening.
type TimeWindow struct {
	bun.BaseModel `bun:"table:time_windows"`

	ID        int64     `bun:",pk,autoincrement" json:"id"`
	OpeningID int64     `bun:"opening_id,notnull" json:"openingId"`
	Name      string    `bun:"name" json:"name"`
	Date      time.Time `bun:"date" json:"date"`
}
