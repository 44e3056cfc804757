package entity

import "github.com/uptrace/bun"

// Circle is a vendor group publishing items and openings.
type Circle struct {
	bun.BaseModel `bun:"table:circles"`

	ID            int64  `bun:",pk,autoincrement" json:"id"`
	DisplayName   string `bun:"display_name,notnull" json:"displayName"`
	Alias         string `bun:"alias" json:"alias"`
	Description   string `bun:"description" json:"description"`
	LogoURL       string `bun:"logo_url" json:"logoUrl"`
	BackgroundURL string `bun:"background_url" json:"backgroundUrl"`
	CSSClassName  string `bun:"css_class_name" json:"cssClassName"`
	HomePageOrder int    `bun:"home_page_order" json:"homePageOrder"`
	Visible       bool   `bun:"visible" json:"visible"`
}
