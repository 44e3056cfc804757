package dto

import (
	"time"

	"github.com/Additional-Code/pincer/internal/entity"
)

// ItemResponse is an item card with what the viewer may do with it.
type ItemResponse struct {
	ID                  int64                `json:"id"`
	Name                string               `json:"name"`
	Description         string               `json:"description"`
	Ingredients         string               `json:"ingredients"`
	Keywords            string               `json:"keywords"`
	DetailsConfigJSON   string               `json:"detailsConfigJson"`
	Price               int                  `json:"price"`
	ImageName           string               `json:"imageName"`
	Category            string               `json:"category"`
	CircleID            int64                `json:"circleId"`
	CircleName          string               `json:"circleName"`
	CircleAlias         string               `json:"circleAlias"`
	CircleColor         string               `json:"circleColor"`
	Orderable           bool                 `json:"orderable"`
	PersonallyOrderable bool                 `json:"personallyOrderable"`
	NextOpeningDate     int64                `json:"nextOpeningDate"`
	OpeningID           int64                `json:"openingId"`
	ExplicitOpening     bool                 `json:"explicitOpening"`
	TimeWindows         []TimeWindowResponse `json:"timeNames"`
}

// TimeWindowResponse is a pickup slot the viewer can choose.
type TimeWindowResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NewItemResponse maps an item and the opening it would be ordered in.
// Ordering details are only revealed to logged-in viewers.
func NewItemResponse(item *entity.Item, opening *entity.Opening, loggedIn, explicit bool, now time.Time) ItemResponse {
	resp := ItemResponse{
		ID:                  item.ID,
		Name:                item.Name,
		Description:         item.Description,
		Ingredients:         item.Ingredients,
		Keywords:            item.Keywords,
		DetailsConfigJSON:   item.DetailsConfigJSON,
		Price:               item.Price,
		ImageName:           item.ImageName,
		Category:            item.ItemCategory().String(),
		CircleID:            item.CircleID,
		CircleColor:         "none",
		PersonallyOrderable: item.PersonallyOrderable,
		ExplicitOpening:     explicit,
		TimeWindows:         []TimeWindowResponse{},
	}
	if item.DetailsConfigJSON == "" {
		resp.DetailsConfigJSON = "[]"
	}
	if c := item.Circle; c != nil {
		resp.CircleName = c.DisplayName
		resp.CircleAlias = c.Alias
		if c.CSSClassName != "" {
			resp.CircleColor = c.CSSClassName
		}
	}
	if opening == nil {
		return resp
	}
	resp.NextOpeningDate = opening.DateStart.UnixMilli()
	if !loggedIn {
		return resp
	}
	resp.OpeningID = opening.ID
	resp.Orderable = item.Orderable && opening.AcceptsOrdersAt(now)
	for _, tw := range opening.TimeWindows {
		if tw != nil {
			resp.TimeWindows = append(resp.TimeWindows, TimeWindowResponse{ID: tw.ID, Name: tw.Name})
		}
	}
	return resp
}
