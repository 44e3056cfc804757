package dto

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Additional-Code/pincer/internal/entity"
)

// NewOrderRequest is the body of an order submission. It is accepted both as
// JSON and as a form post.
type NewOrderRequest struct {
	ID                 int64              `json:"id" form:"id"`
	Time               int64              `json:"time" form:"time"`
	Comment            string             `json:"comment" form:"comment"`
	Count              int                `json:"count" form:"count"`
	DetailsJSON        string             `json:"detailsJson" form:"detailsJson"`
	ManualOrderDetails *ManualUserDetails `json:"manualOrderDetails,omitempty" form:"-"`
}

// DefaultNewOrderRequest returns the values assumed for omitted fields.
func DefaultNewOrderRequest() NewOrderRequest {
	return NewOrderRequest{ID: -1, Time: -1, Count: 1, DetailsJSON: "{}"}
}

// Valid reports whether the request names an item and a time slot and
// carries option details.
func (r NewOrderRequest) Valid() bool {
	details := strings.TrimSpace(r.DetailsJSON)
	return r.ID >= 0 && r.Time >= 0 && details != "" && details != "{}"
}

// ManualUserDetails identifies the customer of an order entered by staff.
type ManualUserDetails struct {
	Name  string `json:"name"`
	Room  string `json:"room"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Encode renders the details for storage alongside the order.
func (d ManualUserDetails) Encode() string {
	raw, err := json.Marshal(d)
	if err != nil {
		return d.Name
	}
	return string(raw)
}

// DeleteOrderRequest is the body of an order cancellation.
type DeleteOrderRequest struct {
	ID int64 `json:"id" form:"id"`
}

// ChangeOrderRequest is the body of an order change.
type ChangeOrderRequest struct {
	ID      int64  `json:"id" form:"id"`
	Room    string `json:"room" form:"room"`
	Comment string `json:"comment" form:"comment"`
}

// RoomChangeRequest is the body of a room update.
type RoomChangeRequest struct {
	Room string `json:"room" form:"room"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID         int64     `json:"id"`
	ItemName   string    `json:"itemName"`
	CircleName string    `json:"circleName"`
	Count      int       `json:"count"`
	Price      int       `json:"price"`
	Status     string    `json:"status"`
	Room       string    `json:"room"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewOrderResponse maps an order, tolerating a missing item or circle.
func NewOrderResponse(o *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:        o.ID,
		Count:     o.Count,
		Price:     o.Price,
		Status:    string(o.Status),
		Room:      o.Room,
		Comment:   o.Comment,
		CreatedAt: o.CreatedAt,
	}
	if o.Item != nil {
		resp.ItemName = o.Item.Name
		if o.Item.Circle != nil {
			resp.CircleName = o.Item.Circle.DisplayName
		}
	}
	return resp
}
