package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusAccepted  OrderStatus = "ACCEPTED"
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
)

// Order is a request of a user for a quantity of one item within one opening.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID            int64       `bun:",pk,autoincrement" json:"id"`
	UserID        string      `bun:"user_id,notnull" json:"userId"`
	UserName      string      `bun:"user_name" json:"userName"`
	OpeningID     int64       `bun:"opening_id,notnull" json:"openingId"`
	ItemID        int64       `bun:"item_id,notnull" json:"itemId"`
	Item          *Item       `bun:"rel:belongs-to,join:item_id=id" json:"item,omitempty"`
	TimeWindowID  int64       `bun:"time_window_id" json:"timeWindowId"`
	Count         int         `bun:"count,notnull" json:"count"`
	Comment       string      `bun:"comment" json:"comment"`
	Room          string      `bun:"room" json:"room"`
	DetailsJSON   string      `bun:"details_json" json:"detailsJson"`
	Price         int         `bun:"price" json:"price"`
	Status        OrderStatus `bun:"status,notnull" json:"status"`
	Manual        bool        `bun:"manual" json:"manual"`
	ManualDetails string      `bun:"manual_details" json:"manualDetails,omitempty"`
	CreatedAt     time.Time   `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt     time.Time   `bun:"updated_at,nullzero" json:"updatedAt"`
}

// Category is the category of the ordered item; orders without a loaded item
// count as CategoryDefault.
func (o *Order) Category() ItemCategory {
	if o.Item == nil {
		return CategoryDefault
	}
	return o.Item.ItemCategory()
}
