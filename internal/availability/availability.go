// Package availability computes how many more units an opening can accept.
//
// The computation is a pure function of an opening and a snapshot of its
// orders. Callers that act on the result (accepting a new order) must hold
// their own atomicity boundary around reading the snapshot and writing the
// order.
package availability

import (
	"fmt"

	"github.com/Additional-Code/pincer/internal/entity"
)

// CategoryCap returns the configured limit of a category. CategoryDefault has
// no limit of its own and reports bounded=false.
func CategoryCap(o *entity.Opening, c entity.ItemCategory) (limit int, bounded bool) {
	switch c {
	case entity.CategoryDefault:
		return 0, false
	case entity.CategoryAlpha:
		return o.MaxAlpha, true
	case entity.CategoryBeta:
		return o.MaxBeta, true
	case entity.CategoryGamma:
		return o.MaxGamma, true
	case entity.CategoryDelta:
		return o.MaxDelta, true
	case entity.CategoryLambda:
		return o.MaxLambda, true
	default:
		panic(fmt.Sprintf("availability: no capacity rule for category %d", int(c)))
	}
}

// Usage is the consumed count of accepted orders, overall and per category.
type Usage struct {
	Total      int
	ByCategory map[entity.ItemCategory]int
}

// Accepted sums the counts of accepted orders.
func Accepted(orders []entity.Order) Usage {
	u := Usage{ByCategory: make(map[entity.ItemCategory]int)}
	for i := range orders {
		if orders[i].Status != entity.OrderStatusAccepted {
			continue
		}
		u.Total += orders[i].Count
		u.ByCategory[orders[i].Category()] += orders[i].Count
	}
	return u
}

// Remaining returns the signed number of units the opening can still accept.
//
// It is the minimum of the overall remaining capacity and the largest
// remaining figure among the categories that have accepted orders. The
// default category contributes the overall remaining capacity. A negative
// result means the opening is over-subscribed.
func Remaining(o *entity.Opening, orders []entity.Order) int {
	return remaining(o, Accepted(orders))
}

func remaining(o *entity.Opening, u Usage) int {
	overall := o.MaxOrder - u.Total
	if len(u.ByCategory) == 0 {
		return overall
	}

	best, seen := 0, false
	for c, used := range u.ByCategory {
		left := overall
		if limit, bounded := CategoryCap(o, c); bounded {
			left = limit - used
		}
		if !seen || left > best {
			best, seen = left, true
		}
	}
	return min(overall, best)
}

// Available is Remaining clamped at zero, for figures shown to clients.
func Available(o *entity.Opening, orders []entity.Order) int {
	return max(0, Remaining(o, orders))
}

// CategoryRemaining returns the signed headroom left for one category. For
// the default category this is the overall remaining capacity.
func CategoryRemaining(o *entity.Opening, orders []entity.Order, c entity.ItemCategory) int {
	u := Accepted(orders)
	if limit, bounded := CategoryCap(o, c); bounded {
		return limit - u.ByCategory[c]
	}
	return o.MaxOrder - u.Total
}
