package entity

import "github.com/uptrace/bun"

// Item is a purchasable product of a circle.
type Item struct {
	bun.BaseModel `bun:"table:items"`

	ID                  int64   `bun:",pk,autoincrement" json:"id"`
	CircleID            int64   `bun:"circle_id,notnull" json:"circleId"`
	Circle              *Circle `bun:"rel:belongs-to,join:circle_id=id" json:"circle,omitempty"`
	Name                string  `bun:"name,notnull" json:"name"`
	Description         string  `bun:"description" json:"description"`
	Ingredients         string  `bun:"ingredients" json:"ingredients"`
	Keywords            string  `bun:"keywords" json:"keywords"`
	DetailsConfigJSON   string  `bun:"details_config_json" json:"detailsConfigJson"`
	Price               int     `bun:"price" json:"price"`
	ImageName           string  `bun:"image_name" json:"imageName"`
	Category            int     `bun:"category" json:"category"`
	Orderable           bool    `bun:"orderable" json:"orderable"`
	Visible             bool    `bun:"visible" json:"visible"`
	VisibleInAll        bool    `bun:"visible_in_all" json:"visibleInAll"`
	VisibleWithoutLogin bool    `bun:"visible_without_login" json:"visibleWithoutLogin"`
	PersonallyOrderable bool    `bun:"personally_orderable" json:"personallyOrderable"`
}

// ItemCategory resolves the stored category code.
func (i *Item) ItemCategory() ItemCategory {
	if i == nil {
		return CategoryDefault
	}
	return CategoryOf(i.Category)
}
